// Package hendrix wires the Musical Hendrix storefront client together: the
// session, catalog, cart, pending-order gate, order flows and payment
// confirmation.
package hendrix

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/auth"
	"gofalre.io/hendrix/cart"
	"gofalre.io/hendrix/category"
	"gofalre.io/hendrix/event"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/order"
	"gofalre.io/hendrix/payment"
	"gofalre.io/hendrix/stock"
	"gofalre.io/hendrix/storage"
)

const defaultWorkers = 4

var ErrNoPendingOrder = errors.New("no pending order")

type Service interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
	CurrentUser() *models.User
	RefreshSession(ctx context.Context) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, params auth.ResetPasswordParams) (string, error)

	ListCategories(ctx context.Context) ([]models.Category, error)
	ListInstruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error)
	GetInstrument(ctx context.Context, id uint64) (*models.Instrument, error)

	Cart() models.CartView
	DismissCartMessage()
	AddToCart(ctx context.Context, instrumentID uint64, quantity int) error
	UpdateCartItem(ctx context.Context, instrumentID uint64, quantity int) error
	RemoveFromCart(ctx context.Context, instrumentID uint64) error
	ClearCart(ctx context.Context) error
	ToggleCart() error

	PendingOrder(ctx context.Context) (*models.Order, error)
	SubmitOrder(ctx context.Context) (*models.Order, error)
	MyOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	CancelOrder(ctx context.Context, id uint64, reason string) (*models.Order, error)

	StartPayment(ctx context.Context, orderID uint64) (*models.Checkout, error)
	WatchPayment(ctx context.Context, onChange func(payment.Snapshot)) (enum.PollState, error)
	CheckPayment(ctx context.Context) (payment.Snapshot, error)

	ListAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint64, status enum.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uint64) error
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error)
	LowStock(ctx context.Context) ([]models.Instrument, error)
	UpdatePrice(ctx context.Context, params stock.UpdatePriceParams) (*models.Instrument, error)
	Restock(ctx context.Context, params stock.RestockParams) (*models.Instrument, error)
	CreateInstrument(ctx context.Context, params stock.InstrumentParams) (*models.Instrument, error)
	UpdateInstrument(ctx context.Context, params stock.UpdateInstrumentParams) (*models.Instrument, error)
	DeleteInstrument(ctx context.Context, id uint64) error
	UploadImage(ctx context.Context, params stock.UploadImageParams) (*models.ImageUpload, error)
	OrderStats(ctx context.Context) (*models.OrderStats, error)

	Close() error
}

// Options configures NewService. NatsConn is optional; without it payment
// confirmation relies on polling alone.
type Options struct {
	Client   *api.Client
	Store    storage.Store
	NatsConn *nats.Conn
	Poller   payment.Config
	Workers  int
}

type service struct {
	client    *api.Client
	store     storage.Store
	session   *auth.Session
	admin     *auth.Admin
	catalog   category.Repository
	inventory *stock.Inventory
	cart      *cart.Store
	gate      *order.Gate
	submitter *order.Submitter
	orders    *order.Manager
	launcher  *payment.Launcher
	refs      *payment.ReferenceStore
	events    event.Repository

	eventManager *EventManager
	workerPool   *WorkerPool

	mu        sync.Mutex
	poller    *payment.Poller
	pollerCfg payment.Config

	logger *zap.Logger
}

func NewService(ctx context.Context, opts Options, logger *zap.Logger) (Service, error) {
	if opts.Client == nil || opts.Store == nil {
		return nil, errors.New("api client and store are required")
	}

	s := &service{
		client:    opts.Client,
		store:     opts.Store,
		refs:      payment.NewReferenceStore(opts.Store),
		events:    event.NewRepository(opts.Store, logger),
		pollerCfg: opts.Poller,
		logger:    logger,
	}

	// 1. 還原登入狀態
	s.session = auth.NewSession(opts.Client, opts.Store, logger)
	opts.Client.SetTokenSource(s.session)
	if err := s.session.Restore(ctx); err != nil {
		logger.Warn("Failed to restore session", zap.Error(err))
	}

	// 2. 組裝購物車與待付款訂單
	s.gate = order.NewGate(opts.Client, s.session, logger)
	s.cart = cart.NewStore(s.session, s.gate, opts.Store, logger)
	s.gate.Subscribe(s.cart.OnPendingOrder)
	// 角色與帳號狀態以後端為準
	if s.session.IsAuthenticated() {
		if _, err := s.RefreshSession(ctx); err != nil {
			logger.Warn("Failed to refresh restored session", zap.Error(err))
		}
	}
	if err := s.cart.Load(ctx); err != nil {
		logger.Warn("Failed to load cart", zap.Error(err))
	}
	if _, err := s.gate.CheckRemote(ctx); err != nil {
		logger.Warn("Pending order check failed", zap.Error(err))
	}

	// 3. 其餘服務
	s.catalog = category.NewRepository(opts.Client, opts.Store, logger)
	s.inventory = stock.NewInventory(opts.Client, s.session, s.catalog, logger)
	s.admin = auth.NewAdmin(opts.Client, s.session, logger)
	s.submitter = order.NewSubmitter(s.cart, s.gate, opts.Client, opts.Client, s.session, opts.Store, logger)
	s.orders = order.NewManager(opts.Client, s.gate, s.session, logger)
	s.launcher = payment.NewLauncher(opts.Client, s.session, s.refs, opts.Store, logger)

	// 4. 訂閱付款事件
	if opts.NatsConn != nil {
		workers := opts.Workers
		if workers <= 0 {
			workers = defaultWorkers
		}
		s.eventManager = NewEventManager(opts.NatsConn, logger)
		s.workerPool = NewWorkerPool(workers, s, logger)
		s.registerEventHandlers()

		if err := s.eventManager.SubscribeToEvents(ctx, s.workerPool); err != nil {
			logger.Error("Failed to subscribe to events", zap.Error(err))
		}
	}

	return s, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if _, err = s.gate.Recheck(ctx); err != nil {
		s.logger.Warn("Pending order check failed", zap.Error(err))
	}
	return user, nil
}

func (s *service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	return s.session.Register(ctx, req)
}

func (s *service) Logout(ctx context.Context) error {
	s.gate.Clear(ctx)
	return s.session.Logout(ctx)
}

func (s *service) CurrentUser() *models.User {
	return s.session.User()
}

// RefreshSession replaces the stored user record with the backend's view of
// the token. A rejected token or an inactive account signs the session out.
func (s *service) RefreshSession(ctx context.Context) (*models.User, error) {
	if err := s.session.Refresh(ctx); err != nil {
		if errors.Is(err, auth.ErrNotSignedIn) || errors.Is(err, auth.ErrAccountInactive) {
			s.gate.Clear(ctx)
		}
		return nil, err
	}
	return s.session.User(), nil
}

func (s *service) ForgotPassword(ctx context.Context, email string) (string, error) {
	return s.session.ForgotPassword(ctx, email)
}

func (s *service) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	return s.session.VerifyResetToken(ctx, token)
}

func (s *service) ResetPassword(ctx context.Context, params auth.ResetPasswordParams) (string, error) {
	return s.session.ResetPassword(ctx, params)
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *service) ListInstruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error) {
	return s.catalog.ListInstruments(ctx, categoryID)
}

func (s *service) GetInstrument(ctx context.Context, id uint64) (*models.Instrument, error) {
	return s.catalog.GetInstrument(ctx, id)
}

func (s *service) Cart() models.CartView {
	return s.cart.View()
}

func (s *service) DismissCartMessage() {
	s.cart.ClearMessage()
}

// AddToCart fetches the instrument so the cart validates against current
// stock and price.
func (s *service) AddToCart(ctx context.Context, instrumentID uint64, quantity int) error {
	instrument, err := s.catalog.GetInstrument(ctx, instrumentID)
	if err != nil {
		if api.IsNotFound(err) {
			return models.NewDenial(enum.DenialInvalidProduct, "Producto inválido")
		}
		return err
	}
	return s.cart.AddItem(ctx, *instrument, quantity)
}

func (s *service) UpdateCartItem(ctx context.Context, instrumentID uint64, quantity int) error {
	return s.cart.UpdateQuantity(ctx, instrumentID, quantity)
}

func (s *service) RemoveFromCart(ctx context.Context, instrumentID uint64) error {
	return s.cart.RemoveItem(ctx, instrumentID)
}

func (s *service) ClearCart(ctx context.Context) error {
	return s.cart.Clear(ctx)
}

func (s *service) ToggleCart() error {
	return s.cart.ToggleVisibility()
}

// PendingOrder returns the order awaiting payment, asking the backend again
// when the gate holds nothing.
func (s *service) PendingOrder(ctx context.Context) (*models.Order, error) {
	if o := s.gate.Pending(); o != nil {
		return o, nil
	}
	return s.gate.Recheck(ctx)
}

func (s *service) SubmitOrder(ctx context.Context) (*models.Order, error) {
	return s.submitter.Submit(ctx)
}

func (s *service) MyOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.MyOrders(ctx)
}

func (s *service) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	return s.orders.Get(ctx, id)
}

func (s *service) CancelOrder(ctx context.Context, id uint64, reason string) (*models.Order, error) {
	return s.orders.Cancel(ctx, id, reason)
}

// StartPayment opens the checkout for orderID, or for the pending order when
// orderID is 0.
func (s *service) StartPayment(ctx context.Context, orderID uint64) (*models.Checkout, error) {
	if orderID == 0 {
		pending, err := s.PendingOrder(ctx)
		if err != nil {
			return nil, err
		}
		if pending == nil {
			return nil, ErrNoPendingOrder
		}
		orderID = pending.ID
	}
	return s.launcher.Start(ctx, orderID)
}

// WatchPayment polls the stored payment reference until it resolves. Payment
// events arriving meanwhile are forwarded to the same poller.
func (s *service) WatchPayment(ctx context.Context, onChange func(payment.Snapshot)) (enum.PollState, error) {
	poller := s.newPoller(onChange)

	s.mu.Lock()
	s.poller = poller
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.poller == poller {
			s.poller = nil
		}
		s.mu.Unlock()
	}()

	state, err := poller.Run(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to watch payment: %w", err)
	}
	return state, nil
}

// CheckPayment runs one manual check, on the active watch if there is one.
func (s *service) CheckPayment(ctx context.Context) (payment.Snapshot, error) {
	poller := s.activePoller()
	if poller == nil {
		poller = s.newPoller(nil)
		defer poller.Stop()
	}

	_, err := poller.CheckManually(ctx)
	return poller.Snapshot(), err
}

func (s *service) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListAll(ctx)
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uint64, status enum.OrderStatus) (*models.Order, error) {
	return s.orders.UpdateStatus(ctx, id, status)
}

func (s *service) DeleteOrder(ctx context.Context, id uint64) error {
	return s.orders.Delete(ctx, id)
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.admin.ListUsers(ctx)
}

func (s *service) UpdateUser(ctx context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error) {
	return s.admin.UpdateUser(ctx, id, update)
}

func (s *service) LowStock(ctx context.Context) ([]models.Instrument, error) {
	return s.inventory.LowStock(ctx)
}

func (s *service) UpdatePrice(ctx context.Context, params stock.UpdatePriceParams) (*models.Instrument, error) {
	return s.inventory.UpdatePrice(ctx, params)
}

func (s *service) Restock(ctx context.Context, params stock.RestockParams) (*models.Instrument, error) {
	return s.inventory.Restock(ctx, params)
}

func (s *service) CreateInstrument(ctx context.Context, params stock.InstrumentParams) (*models.Instrument, error) {
	return s.inventory.CreateInstrument(ctx, params)
}

func (s *service) UpdateInstrument(ctx context.Context, params stock.UpdateInstrumentParams) (*models.Instrument, error) {
	return s.inventory.UpdateInstrument(ctx, params)
}

func (s *service) DeleteInstrument(ctx context.Context, id uint64) error {
	return s.inventory.DeleteInstrument(ctx, id)
}

func (s *service) UploadImage(ctx context.Context, params stock.UploadImageParams) (*models.ImageUpload, error) {
	return s.inventory.UploadImage(ctx, params)
}

func (s *service) OrderStats(ctx context.Context) (*models.OrderStats, error) {
	return s.orders.Stats(ctx)
}

// Close stops the event feed and the active poller's timers.
func (s *service) Close() error {
	var err error
	if s.eventManager != nil {
		err = s.eventManager.Unsubscribe()
	}
	if s.workerPool != nil {
		s.workerPool.Shutdown()
	}
	if poller := s.activePoller(); poller != nil {
		poller.Stop()
	}
	return err
}

func (s *service) newPoller(onChange func(payment.Snapshot)) *payment.Poller {
	poller := payment.NewPoller(s.pollerCfg, s.client, s.refs, s.gate, s.cart, s.logger)
	if onChange != nil {
		poller.OnChange(onChange)
	}
	return poller
}

func (s *service) activePoller() *payment.Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poller
}
