// Package cart holds the customer's cart on the client and mirrors it to
// durable storage after every accepted change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

// Session tells the cart whether the signed-in user is an administrator.
// Carts are for customers only; the check is a client-side courtesy.
type Session interface {
	IsAdmin() bool
}

// PendingSource reports the order currently awaiting payment, if any.
type PendingSource interface {
	Pending() *models.Order
}

type Store struct {
	mu      sync.Mutex
	lines   []models.CartLine
	visible bool
	message string

	session Session
	pending PendingSource
	store   storage.Store
	logger  *zap.Logger
	now     func() time.Time
}

func NewStore(session Session, pending PendingSource, store storage.Store, logger *zap.Logger) *Store {
	return &Store{
		session: session,
		pending: pending,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Load restores the snapshot left by a previous run. Unreadable snapshots
// are deleted.
func (s *Store) Load(ctx context.Context) error {
	if s.session.IsAdmin() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Pending() != nil {
		s.lines = nil
		s.deleteSnapshot(ctx)
		return nil
	}

	raw, err := s.store.Get(ctx, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cart snapshot: %w", err)
	}

	var snapshot models.CartSnapshot
	if err = json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.logger.Warn("Discarding unreadable cart snapshot", zap.Error(err))
		s.deleteSnapshot(ctx)
		return nil
	}

	lines := make([]models.CartLine, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		if line.Instrument.ID == 0 || line.Quantity <= 0 {
			continue
		}
		lines = append(lines, line)
	}
	s.lines = lines

	s.logger.Debug("Cart loaded", zap.Int("lines", len(lines)), zap.Int64("saved_at", snapshot.Timestamp))
	return nil
}

// AddItem puts quantity units of instrument in the cart, merging with an
// existing line for the same instrument.
func (s *Store) AddItem(ctx context.Context, instrument models.Instrument, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAccess(); err != nil {
		return err
	}
	if order := s.pending.Pending(); order != nil {
		return models.NewDenial(enum.DenialPendingOrder, fmt.Sprintf(
			"Tienes el pedido #%d pendiente de pago ($%s). Completa el pago antes de agregar nuevos productos.",
			order.ID, order.Total.StringFixed(2)))
	}

	// 1. 驗證商品資料
	if instrument.ID == 0 {
		return models.NewDenial(enum.DenialInvalidProduct, "Instrumento inválido")
	}
	if quantity <= 0 {
		return models.NewDenial(enum.DenialInvalidQuantity, "Cantidad inválida")
	}
	if instrument.Stock <= 0 {
		return models.NewDenial(enum.DenialOutOfStock,
			fmt.Sprintf("%s no tiene stock disponible", instrument.Name))
	}
	if !instrument.HasValidPrice() {
		return models.NewDenial(enum.DenialInvalidPrice,
			fmt.Sprintf("%s no tiene precio válido", instrument.Name))
	}

	// 2. 檢查庫存，已存在相同商品時合併數量
	idx := s.indexOf(instrument.ID)
	total := quantity
	if idx >= 0 {
		total += s.lines[idx].Quantity
	}
	if total > instrument.Stock {
		return models.NewDenial(enum.DenialInsufficientStock,
			fmt.Sprintf("Solo hay %d unidades disponibles de %s", instrument.Stock, instrument.Name))
	}

	if idx >= 0 {
		s.lines[idx] = models.CartLine{Instrument: instrument, Quantity: total}
	} else {
		s.lines = append(s.lines, models.CartLine{Instrument: instrument, Quantity: quantity})
	}
	s.visible = true

	s.persist(ctx)
	return nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line.
func (s *Store) UpdateQuantity(ctx context.Context, instrumentID uint64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, instrumentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable("modificar el carrito"); err != nil {
		return err
	}

	idx := s.indexOf(instrumentID)
	if idx < 0 {
		return models.NewDenial(enum.DenialNotInCart, "El producto no está en el carrito")
	}
	line := s.lines[idx]
	if quantity > line.Instrument.Stock {
		return models.NewDenial(enum.DenialInsufficientStock,
			fmt.Sprintf("Solo hay %d unidades disponibles de %s", line.Instrument.Stock, line.Instrument.Name))
	}

	s.lines[idx].Quantity = quantity
	s.persist(ctx)
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, instrumentID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable("modificar el carrito"); err != nil {
		return err
	}

	if idx := s.indexOf(instrumentID); idx >= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	}
	s.persist(ctx)
	return nil
}

// Clear empties the cart and drops the informational message.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutable("vaciar el carrito"); err != nil {
		return err
	}

	s.lines = nil
	s.message = ""
	s.persist(ctx)
	return nil
}

func (s *Store) ToggleVisibility() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAccess(); err != nil {
		return err
	}
	s.visible = !s.visible
	return nil
}

// Reset replaces the whole cart state with an empty, hidden cart carrying
// message, and removes the stored snapshot.
func (s *Store) Reset(ctx context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.visible = false
	s.message = message
	s.deleteSnapshot(ctx)
}

func (s *Store) ClearMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = ""
}

// RefreshInstruments replaces the stock and price snapshot of lines whose
// instrument appears in fresh. Quantities are left alone.
func (s *Store) RefreshInstruments(ctx context.Context, fresh []models.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, instrument := range fresh {
		if idx := s.indexOf(instrument.ID); idx >= 0 {
			s.lines[idx].Instrument = instrument
			changed = true
		}
	}
	if changed {
		s.persist(ctx)
	}
}

// OnPendingOrder follows the pending-order gate. While an order awaits
// payment the visible lines and the stored snapshot are dropped.
func (s *Store) OnPendingOrder(ctx context.Context, order *models.Order, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order == nil {
		s.message = ""
		return
	}

	s.lines = nil
	if message != "" {
		s.message = message
	}
	s.deleteSnapshot(ctx)
}

// Lines returns a copy of the cart lines.
func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

// Totals returns the number of units and the price of the whole cart.
func (s *Store) Totals() (int, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Totals(s.lines)
}

func (s *Store) View() models.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, price := models.Totals(s.lines)
	return models.CartView{
		Lines:      s.copyLines(),
		Visible:    s.visible,
		Message:    s.message,
		TotalItems: items,
		TotalPrice: price,
		Pending:    s.pending.Pending(),
	}
}

func (s *Store) checkAccess() error {
	if s.session.IsAdmin() {
		return models.NewDenial(enum.DenialAdminSession,
			"Los administradores no tienen acceso al carrito de compras.")
	}
	return nil
}

func (s *Store) checkMutable(action string) error {
	if err := s.checkAccess(); err != nil {
		return err
	}
	if order := s.pending.Pending(); order != nil {
		return models.NewDenial(enum.DenialPendingOrder, fmt.Sprintf(
			"Completa el pago del pedido #%d ($%s) antes de %s.",
			order.ID, order.Total.StringFixed(2), action))
	}
	return nil
}

func (s *Store) indexOf(instrumentID uint64) int {
	for i, line := range s.lines {
		if line.Instrument.ID == instrumentID {
			return i
		}
	}
	return -1
}

func (s *Store) copyLines() []models.CartLine {
	lines := make([]models.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// persist writes the snapshot. Failures are logged; the in-memory change
// stands.
func (s *Store) persist(ctx context.Context) {
	if s.pending.Pending() != nil {
		s.deleteSnapshot(ctx)
		return
	}

	raw, err := json.Marshal(models.NewCartSnapshot(s.copyLines(), s.now()))
	if err != nil {
		s.logger.Error("Failed to encode cart snapshot", zap.Error(err))
		return
	}
	if err = s.store.Set(ctx, storage.KeyCart, string(raw)); err != nil {
		s.logger.Error("Failed to save cart snapshot", zap.Error(err))
	}
}

func (s *Store) deleteSnapshot(ctx context.Context) {
	if err := s.store.Delete(ctx, storage.KeyCart); err != nil {
		s.logger.Error("Failed to delete cart snapshot", zap.Error(err))
	}
}
