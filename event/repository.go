// Package event records payment events that have already been handled so a
// redelivered event is not applied twice.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/storage"
)

var (
	_ Repository = (*repository)(nil)

	ErrNotFound = errors.New("event: not found")
)

type Repository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	MarkAsProcessed(ctx context.Context, id string) error
}

type repository struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRepository(store storage.Store, logger *zap.Logger) Repository {
	return &repository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	now := r.now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	return r.put(ctx, event)
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	raw, err := r.store.Get(ctx, storage.EventKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	var event models.Event
	if err = json.Unmarshal([]byte(raw), &event); err != nil {
		r.logger.Warn("Discarding unreadable event record", zap.String("event_id", id), zap.Error(err))
		return nil, ErrNotFound
	}
	return &event, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, id string) error {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	event.Processed = true
	event.UpdatedAt = r.now()
	return r.put(ctx, event)
}

func (r *repository) put(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	if err = r.store.Set(ctx, storage.EventKey(event.ID), string(data)); err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}
	return nil
}
