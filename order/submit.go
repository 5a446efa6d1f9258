package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

type Cart interface {
	Lines() []models.CartLine
	RefreshInstruments(ctx context.Context, fresh []models.Instrument)
	Reset(ctx context.Context, message string)
}

type CreateBackend interface {
	CreateOrder(ctx context.Context, req *models.OrderRequest, idempotencyKey string) (*models.Order, error)
}

// InstrumentSource looks up the current stock and price of an instrument.
type InstrumentSource interface {
	Instrument(ctx context.Context, id uint64) (*models.Instrument, error)
}

type Identity interface {
	IsAuthenticated() bool
	IsAdmin() bool
	UserID() uint64
}

// Submitter turns the cart into an order.
type Submitter struct {
	inFlight atomic.Bool

	cart        Cart
	gate        *Gate
	backend     CreateBackend
	instruments InstrumentSource
	session     Identity
	store       storage.Store
	logger      *zap.Logger
	newKey      func() string
	now         func() time.Time
}

// NewSubmitter builds a Submitter. instruments may be nil, in which case the
// stock and price already in the cart are trusted.
func NewSubmitter(cart Cart, gate *Gate, backend CreateBackend, instruments InstrumentSource,
	session Identity, store storage.Store, logger *zap.Logger) *Submitter {
	return &Submitter{
		cart:        cart,
		gate:        gate,
		backend:     backend,
		instruments: instruments,
		session:     session,
		store:       store,
		logger:      logger,
		newKey:      uuid.NewString,
		now:         time.Now,
	}
}

// Submit validates the cart and creates an order from it. On success the
// cart is emptied and the order becomes the pending order.
func (s *Submitter) Submit(ctx context.Context) (*models.Order, error) {
	// 1. 檢查是否允許下單
	if s.session.IsAdmin() {
		return nil, models.NewDenial(enum.DenialAdminSession, "Los administradores no pueden crear pedidos")
	}
	if pending := s.gate.Pending(); pending != nil {
		return nil, models.NewDenial(enum.DenialPendingOrder, fmt.Sprintf(
			"Ya tienes el pedido #%d pendiente de pago ($%s). Completa el pago antes de crear un nuevo pedido.",
			pending.ID, pending.Total.StringFixed(2)))
	}
	if len(s.cart.Lines()) == 0 {
		return nil, models.NewDenial(enum.DenialEmptyCart, "No hay items en el carrito")
	}
	if !s.session.IsAuthenticated() || s.session.UserID() == 0 {
		return nil, models.NewDenial(enum.DenialUnauthenticated, "Debes iniciar sesión para crear un pedido")
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, models.NewDenial(enum.DenialInFlight, "Ya se está enviando un pedido")
	}
	defer s.inFlight.Store(false)

	// 2. 重新取得庫存與價格
	s.refresh(ctx)
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, models.NewDenial(enum.DenialEmptyCart, "No hay items en el carrito")
	}

	// 3. 驗證所有項目
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	// 4. 建立並送出訂單
	req := models.NewOrderRequest(s.session.UserID(), lines)
	key := s.newKey()
	order, err := s.backend.CreateOrder(ctx, req, key)
	if err != nil {
		if api.IsPendingOrderConflict(err) {
			s.logger.Info("Backend reports a pending order, rechecking")
			if _, recheckErr := s.gate.Recheck(ctx); recheckErr != nil {
				s.logger.Warn("Pending order recheck failed", zap.Error(recheckErr))
			}
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if order == nil || order.ID == 0 {
		s.logger.Error("Order creation returned no order id", zap.String("idempotency_key", key))
		return nil, fmt.Errorf("failed to create order: %w", api.ErrGhostSuccess)
	}
	if order.Status == "" {
		order.Status = enum.OrderStatusPendingPayment
	}

	// 5. 清空購物車並啟用待付款訂單
	s.cart.Reset(ctx, fmt.Sprintf("Pedido #%d creado correctamente ($%s). Procede al pago.",
		order.ID, order.Total.StringFixed(2)))
	s.rememberOrder(ctx, order.ID)
	s.gate.Set(ctx, order)

	s.logger.Info("Order created",
		zap.Uint64("order_id", order.ID),
		zap.String("total", order.Total.String()),
		zap.Int("lines", len(lines)))
	return order, nil
}

func (s *Submitter) refresh(ctx context.Context) {
	if s.instruments == nil {
		return
	}

	var fresh []models.Instrument
	for _, line := range s.cart.Lines() {
		if line.Instrument.ID == 0 {
			continue
		}
		instrument, err := s.instruments.Instrument(ctx, line.Instrument.ID)
		if err != nil {
			s.logger.Warn("Failed to refresh instrument, using cart snapshot",
				zap.Uint64("instrument_id", line.Instrument.ID), zap.Error(err))
			continue
		}
		fresh = append(fresh, *instrument)
	}
	if len(fresh) > 0 {
		s.cart.RefreshInstruments(ctx, fresh)
	}
}

func (s *Submitter) rememberOrder(ctx context.Context, id uint64) {
	if err := s.store.Set(ctx, storage.KeyLastOrderID, strconv.FormatUint(id, 10)); err != nil {
		s.logger.Warn("Failed to store last order id", zap.Error(err))
	}
	if err := s.store.Set(ctx, storage.KeyLastOrderTimestamp, strconv.FormatInt(s.now().UnixMilli(), 10)); err != nil {
		s.logger.Warn("Failed to store last order timestamp", zap.Error(err))
	}
}

// validateLines checks structure first, then stock, and names every offending
// product in one message.
func validateLines(lines []models.CartLine) error {
	var invalid, short []string
	for _, line := range lines {
		if line.Instrument.ID == 0 || !line.Instrument.HasValidPrice() || line.Quantity <= 0 {
			invalid = append(invalid, line.Instrument.Name)
		}
	}
	if len(invalid) > 0 {
		return models.NewDenial(enum.DenialInvalidItems,
			"Los siguientes productos tienen datos inválidos: "+strings.Join(invalid, ", "))
	}

	for _, line := range lines {
		if line.Quantity > line.Instrument.Stock {
			short = append(short, line.Instrument.Name)
		}
	}
	if len(short) > 0 {
		return models.NewDenial(enum.DenialInsufficientStock,
			"Los siguientes productos no tienen stock suficiente: "+strings.Join(short, ", "))
	}
	return nil
}
