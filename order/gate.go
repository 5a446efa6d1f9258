package order

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
)

// Listener is told whenever the pending order changes. A nil order means the
// gate was cleared.
type Listener func(ctx context.Context, order *models.Order, message string)

type PendingBackend interface {
	PendingOrder(ctx context.Context) (*models.Order, error)
}

type Session interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Gate tracks the order awaiting payment. While one exists every cart
// mutation is refused.
type Gate struct {
	mu        sync.Mutex
	pending   *models.Order
	checked   bool
	listeners []Listener

	backend PendingBackend
	session Session
	logger  *zap.Logger
}

func NewGate(backend PendingBackend, session Session, logger *zap.Logger) *Gate {
	return &Gate{
		backend: backend,
		session: session,
		logger:  logger,
	}
}

// Subscribe registers l. Listeners run on the caller's goroutine, after the
// gate has released its lock.
func (g *Gate) Subscribe(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// Pending returns a copy of the pending order, or nil.
func (g *Gate) Pending() *models.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	o := *g.pending
	return &o
}

// CheckRemote asks the backend once per session whether the user has an
// unpaid order. It does nothing for anonymous or admin sessions, or when a
// check already ran. The check is marked done even when it fails.
func (g *Gate) CheckRemote(ctx context.Context) (*models.Order, error) {
	if !g.session.IsAuthenticated() || g.session.IsAdmin() {
		return nil, nil
	}

	g.mu.Lock()
	if g.checked {
		g.mu.Unlock()
		return nil, nil
	}
	g.checked = true
	g.mu.Unlock()

	order, err := g.backend.PendingOrder(ctx)
	if err != nil {
		g.logger.Warn("Failed to check pending order", zap.Error(err))
		return nil, fmt.Errorf("failed to check pending order: %w", err)
	}
	if order == nil || order.ID == 0 {
		return nil, nil
	}

	g.logger.Info("Pending order found", zap.Uint64("order_id", order.ID))
	g.activate(ctx, order, fmt.Sprintf(
		"Tienes el pedido #%d pendiente de pago ($%s). Completa el pago antes de agregar nuevos productos.",
		order.ID, order.Total.StringFixed(2)))
	return order, nil
}

// Recheck forgets the previous check and asks the backend again.
func (g *Gate) Recheck(ctx context.Context) (*models.Order, error) {
	g.mu.Lock()
	g.checked = false
	g.mu.Unlock()

	return g.CheckRemote(ctx)
}

// Set activates the gate for an order just created by this client.
func (g *Gate) Set(ctx context.Context, order *models.Order) {
	g.activate(ctx, order, "")
}

// Clear drops the pending order and allows a new remote check.
func (g *Gate) Clear(ctx context.Context) {
	g.mu.Lock()
	g.pending = nil
	g.checked = false
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	for _, l := range listeners {
		l(ctx, nil, "")
	}
}

// ClearOrder clears the gate only if it holds the order with id.
func (g *Gate) ClearOrder(ctx context.Context, id uint64) bool {
	g.mu.Lock()
	match := g.pending != nil && g.pending.ID == id
	g.mu.Unlock()

	if match {
		g.Clear(ctx)
	}
	return match
}

func (g *Gate) activate(ctx context.Context, order *models.Order, message string) {
	o := *order

	g.mu.Lock()
	g.pending = &o
	g.checked = true
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	for _, l := range listeners {
		view := o
		l(ctx, &view, message)
	}
}

func (g *Gate) snapshotListeners() []Listener {
	listeners := make([]Listener, len(g.listeners))
	copy(listeners, g.listeners)
	return listeners
}
