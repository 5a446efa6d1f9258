package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

type ManageBackend interface {
	Orders(ctx context.Context) ([]models.Order, error)
	OrdersByUser(ctx context.Context, userID uint64) ([]models.Order, error)
	Order(ctx context.Context, id uint64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint64, status enum.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, id uint64, reason string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uint64) error
	OrderStats(ctx context.Context) (*models.OrderStats, error)
}

// Manager covers order history for customers and order administration.
type Manager struct {
	backend ManageBackend
	gate    *Gate
	session Identity
	logger  *zap.Logger
}

func NewManager(backend ManageBackend, gate *Gate, session Identity, logger *zap.Logger) *Manager {
	return &Manager{
		backend: backend,
		gate:    gate,
		session: session,
		logger:  logger,
	}
}

// MyOrders lists the signed-in customer's orders.
func (m *Manager) MyOrders(ctx context.Context) ([]models.Order, error) {
	if !m.session.IsAuthenticated() {
		return nil, models.NewDenial(enum.DenialUnauthenticated, "Debes iniciar sesión para ver tus pedidos")
	}

	orders, err := m.backend.OrdersByUser(ctx, m.session.UserID())
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (m *Manager) Get(ctx context.Context, id uint64) (*models.Order, error) {
	if !m.session.IsAuthenticated() {
		return nil, models.NewDenial(enum.DenialUnauthenticated, "Debes iniciar sesión para ver tus pedidos")
	}

	order, err := m.backend.Order(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return order, nil
}

// Cancel cancels one of the customer's orders. Cancelling the pending order
// releases the cart.
func (m *Manager) Cancel(ctx context.Context, id uint64, reason string) (*models.Order, error) {
	order, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.AllowChangeStatus(enum.OrderStatusCancelled) {
		return nil, models.NewDenial(enum.DenialInvalidTransition,
			fmt.Sprintf("El pedido #%d no se puede cancelar en estado %s", id, order.Status))
	}

	cancelled, err := m.backend.CancelOrder(ctx, id, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order %d: %w", id, err)
	}
	m.gate.ClearOrder(ctx, id)

	m.logger.Info("Order cancelled", zap.Uint64("order_id", id))
	return cancelled, nil
}

// ListAll lists every order. Administrators only.
func (m *Manager) ListAll(ctx context.Context) ([]models.Order, error) {
	if err := m.requireAdmin(); err != nil {
		return nil, err
	}

	orders, err := m.backend.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle after checking the
// transition locally.
func (m *Manager) UpdateStatus(ctx context.Context, id uint64, status enum.OrderStatus) (*models.Order, error) {
	if err := m.requireAdmin(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.NewDenial(enum.DenialInvalidTransition, fmt.Sprintf("Estado desconocido: %s", status))
	}

	order, err := m.backend.Order(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	if !order.AllowChangeStatus(status) {
		return nil, models.NewDenial(enum.DenialInvalidTransition,
			fmt.Sprintf("No se puede pasar el pedido #%d de %s a %s", id, order.Status, status))
	}

	updated, err := m.backend.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %d status: %w", id, err)
	}

	m.logger.Info("Order status updated",
		zap.Uint64("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)))
	return updated, nil
}

// Delete removes an order that was never paid.
func (m *Manager) Delete(ctx context.Context, id uint64) error {
	if err := m.requireAdmin(); err != nil {
		return err
	}

	order, err := m.backend.Order(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get order %d: %w", id, err)
	}
	if !order.IsPendingPayment() {
		return models.NewDenial(enum.DenialInvalidTransition,
			fmt.Sprintf("Solo se pueden eliminar pedidos pendientes de pago (#%d está %s)", id, order.Status))
	}

	if err = m.backend.DeleteOrder(ctx, id); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}

	m.logger.Info("Order deleted", zap.Uint64("order_id", id))
	return nil
}

// Stats counts every order by status. Administrators only.
func (m *Manager) Stats(ctx context.Context) (*models.OrderStats, error) {
	if err := m.requireAdmin(); err != nil {
		return nil, err
	}

	stats, err := m.backend.OrderStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order stats: %w", err)
	}
	return stats, nil
}

func (m *Manager) requireAdmin() error {
	if !m.session.IsAdmin() {
		return models.NewDenial(enum.DenialNotAdmin, "Esta acción requiere una cuenta de administrador")
	}
	return nil
}
