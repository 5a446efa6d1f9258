package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"gofalre.io/hendrix/cart"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

// mockSession implements Session and Identity for testing
type mockSession struct {
	authenticated bool
	admin         bool
	userID        uint64
}

func (m *mockSession) IsAuthenticated() bool { return m.authenticated }
func (m *mockSession) IsAdmin() bool         { return m.admin }
func (m *mockSession) UserID() uint64        { return m.userID }

func customer() *mockSession {
	return &mockSession{authenticated: true, userID: 7}
}

// mockBackend implements PendingBackend, CreateBackend, InstrumentSource and
// ManageBackend for testing
type mockBackend struct {
	mu sync.Mutex

	PendingOrderResult *models.Order
	PendingErr         error
	PendingCalls       int

	CreateResult *models.Order
	CreateErr    error
	CreateCalls  int
	LastRequest  *models.OrderRequest
	LastKey      string

	Catalog map[uint64]models.Instrument

	OrdersByID  map[uint64]*models.Order
	Cancelled   []uint64
	Deleted     []uint64
	StatusCalls int

	Stats *models.OrderStats
}

func (m *mockBackend) PendingOrder(_ context.Context) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingCalls++
	return m.PendingOrderResult, m.PendingErr
}

func (m *mockBackend) CreateOrder(_ context.Context, req *models.OrderRequest, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.LastRequest = req
	m.LastKey = key
	return m.CreateResult, m.CreateErr
}

func (m *mockBackend) Instrument(_ context.Context, id uint64) (*models.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.Catalog[id]
	if !ok {
		return nil, errors.New("instrument not found")
	}
	return &i, nil
}

func (m *mockBackend) Orders(_ context.Context) ([]models.Order, error) {
	var orders []models.Order
	for _, o := range m.OrdersByID {
		orders = append(orders, *o)
	}
	return orders, nil
}

func (m *mockBackend) OrdersByUser(_ context.Context, _ uint64) ([]models.Order, error) {
	return m.Orders(context.Background())
}

func (m *mockBackend) Order(_ context.Context, id uint64) (*models.Order, error) {
	o, ok := m.OrdersByID[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	c := *o
	return &c, nil
}

func (m *mockBackend) UpdateOrderStatus(_ context.Context, id uint64, status enum.OrderStatus) (*models.Order, error) {
	m.StatusCalls++
	m.OrdersByID[id].Status = status
	return m.Order(context.Background(), id)
}

func (m *mockBackend) CancelOrder(_ context.Context, id uint64, _ string) (*models.Order, error) {
	m.Cancelled = append(m.Cancelled, id)
	m.OrdersByID[id].Status = enum.OrderStatusCancelled
	return m.Order(context.Background(), id)
}

func (m *mockBackend) DeleteOrder(_ context.Context, id uint64) error {
	m.Deleted = append(m.Deleted, id)
	delete(m.OrdersByID, id)
	return nil
}

func (m *mockBackend) OrderStats(_ context.Context) (*models.OrderStats, error) {
	if m.Stats == nil {
		return nil, errors.New("stats unavailable")
	}
	return m.Stats, nil
}

func instrument(id uint64, name string, stock int, price string) models.Instrument {
	p := decimal.RequireFromString(price)
	return models.Instrument{ID: id, Name: name, Stock: stock, Price: &p}
}

// fixture wires a real cart to a gate the way the storefront does.
type fixture struct {
	backend   *mockBackend
	session   *mockSession
	store     *storage.Memory
	gate      *Gate
	cart      *cart.Store
	submitter *Submitter
}

func setupFixture(t *testing.T, session *mockSession) *fixture {
	logger := zaptest.NewLogger(t)
	f := &fixture{
		backend: &mockBackend{Catalog: map[uint64]models.Instrument{}},
		session: session,
		store:   storage.NewMemory(),
	}
	f.gate = NewGate(f.backend, session, logger)
	f.cart = cart.NewStore(session, f.gate, f.store, logger)
	f.gate.Subscribe(f.cart.OnPendingOrder)
	f.submitter = NewSubmitter(f.cart, f.gate, f.backend, f.backend, session, f.store, logger)
	f.submitter.newKey = func() string { return "key-1" }
	return f
}

// stock puts an instrument in the backend catalog and in the cart.
func (f *fixture) stock(t *testing.T, i models.Instrument, quantity int) {
	t.Helper()
	f.backend.Catalog[i.ID] = i
	if err := f.cart.AddItem(context.Background(), i, quantity); err != nil {
		t.Fatalf("failed to add %s: %v", i.Name, err)
	}
}
