package payment

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

type CheckoutBackend interface {
	CreatePayment(ctx context.Context, orderID uint64) (*models.Checkout, error)
}

type Session interface {
	IsAdmin() bool
}

// Launcher opens a hosted checkout for an order and remembers its reference
// so a Poller can follow it.
type Launcher struct {
	backend CheckoutBackend
	session Session
	refs    *ReferenceStore
	store   storage.Store
	logger  *zap.Logger
}

func NewLauncher(backend CheckoutBackend, session Session, refs *ReferenceStore, store storage.Store, logger *zap.Logger) *Launcher {
	return &Launcher{
		backend: backend,
		session: session,
		refs:    refs,
		store:   store,
		logger:  logger,
	}
}

// Start creates the checkout and returns it. The caller opens Checkout.URL().
func (l *Launcher) Start(ctx context.Context, orderID uint64) (*models.Checkout, error) {
	if l.session.IsAdmin() {
		return nil, models.NewDenial(enum.DenialAdminSession, "Los administradores no pueden realizar pagos")
	}
	if orderID == 0 {
		return nil, models.NewDenial(enum.DenialInvalidOrder, "ID de pedido inválido")
	}

	checkout, err := l.backend.CreatePayment(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment for order %d: %w", orderID, err)
	}
	if checkout.PreferenceID == "" || checkout.URL() == "" {
		l.logger.Error("Checkout created without reference or URL", zap.Uint64("order_id", orderID))
		return nil, fmt.Errorf("failed to create payment for order %d: %w", orderID, api.ErrGhostSuccess)
	}

	if err = l.refs.Set(ctx, checkout.PreferenceID); err != nil {
		return nil, err
	}
	if err = l.store.Set(ctx, storage.KeyLastOrderID, strconv.FormatUint(orderID, 10)); err != nil {
		l.logger.Warn("Failed to store last order id", zap.Error(err))
	}

	l.logger.Info("Checkout launched",
		zap.Uint64("order_id", orderID),
		zap.String("reference", checkout.PreferenceID))
	return checkout, nil
}
