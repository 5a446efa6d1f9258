// Package category serves the catalog: categories and instruments, with a
// read-through cache kept in the storefront's key-value store.
package category

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

const (
	categoryTTL   = 30 * time.Minute
	instrumentTTL = time.Minute
)

var _ Repository = (*repository)(nil)

type Backend interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Instruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error)
	Instrument(ctx context.Context, id uint64) (*models.Instrument, error)
}

type Repository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	// ListInstruments lists the catalog, filtered by category unless
	// categoryID is 0.
	ListInstruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error)
	// GetInstrument always goes to the backend so stock and price are current.
	GetInstrument(ctx context.Context, id uint64) (*models.Instrument, error)
	Invalidate(ctx context.Context, categoryIDs ...uint64)
}

type repository struct {
	backend Backend
	cache   storage.Store
	logger  *zap.Logger
	now     func() time.Time
}

type cacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
}

func NewRepository(backend Backend, cache storage.Store, logger *zap.Logger) Repository {
	return &repository{
		backend: backend,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

func (r *repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	cacheKey := "catalog:categories"

	var categories []models.Category
	if r.getCached(ctx, cacheKey, &categories) {
		return categories, nil
	}

	categories, err := r.backend.Categories(ctx)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	r.setCached(ctx, cacheKey, categories, categoryTTL)
	return categories, nil
}

func (r *repository) ListInstruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error) {
	cacheKey := instrumentsKey(categoryID)

	var instruments []models.Instrument
	if r.getCached(ctx, cacheKey, &instruments) {
		return instruments, nil
	}

	instruments, err := r.backend.Instruments(ctx, categoryID)
	if err != nil {
		r.logger.Error("Failed to list instruments", zap.Uint64("category_id", categoryID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}

	r.setCached(ctx, cacheKey, instruments, instrumentTTL)
	return instruments, nil
}

func (r *repository) GetInstrument(ctx context.Context, id uint64) (*models.Instrument, error) {
	instrument, err := r.backend.Instrument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %d: %w", id, err)
	}
	return instrument, nil
}

// Invalidate drops the cached instrument lists: the unfiltered one and those
// of the given categories.
func (r *repository) Invalidate(ctx context.Context, categoryIDs ...uint64) {
	keys := []string{instrumentsKey(0)}
	for _, id := range categoryIDs {
		if id != 0 {
			keys = append(keys, instrumentsKey(id))
		}
	}
	if err := storage.DeleteAll(ctx, r.cache, keys...); err != nil {
		r.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

func (r *repository) getCached(ctx context.Context, key string, out any) bool {
	raw, err := r.cache.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		r.logger.Warn("Failed to get catalog from cache", zap.String("key", key), zap.Error(err))
		return false
	}

	var entry cacheEntry
	if err = json.Unmarshal([]byte(raw), &entry); err != nil || r.now().UnixMilli() >= entry.ExpiresAt {
		return false
	}
	return json.Unmarshal(entry.Value, out) == nil
}

func (r *repository) setCached(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	raw, err := json.Marshal(cacheEntry{Value: data, ExpiresAt: r.now().Add(ttl).UnixMilli()})
	if err != nil {
		return
	}
	if err = r.cache.Set(ctx, key, string(raw)); err != nil {
		r.logger.Warn("Failed to cache catalog", zap.String("key", key), zap.Error(err))
	}
}

func instrumentsKey(categoryID uint64) string {
	return fmt.Sprintf("catalog:instruments:%d", categoryID)
}
