package order

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

func assertDenial(t *testing.T, err error, reason enum.DenialReason) *models.Denial {
	t.Helper()
	d, ok := models.AsDenial(err)
	require.True(t, ok, "expected denial %s, got %v", reason, err)
	assert.Equal(t, reason, d.Reason)
	return d
}

func TestSubmit_Success(t *testing.T) {
	f := setupFixture(t, customer())
	ctx := context.Background()
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 2)
	f.stock(t, instrument(2, "Púas", 10, "50"), 1)
	f.backend.CreateResult = &models.Order{ID: 31, Total: decimal.NewFromInt(250)}

	order, err := f.submitter.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), order.ID)
	assert.Equal(t, enum.OrderStatusPendingPayment, order.Status)

	// 請求內容
	require.NotNil(t, f.backend.LastRequest)
	assert.Equal(t, "key-1", f.backend.LastKey)
	assert.Equal(t, uint64(7), f.backend.LastRequest.Owner.UserID)
	require.Len(t, f.backend.LastRequest.Lines, 2)
	assert.True(t, decimal.NewFromInt(100).Equal(f.backend.LastRequest.Lines[0].UnitPrice))

	// 購物車清空，待付款訂單啟用
	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, "Pedido #31 creado correctamente ($250.00). Procede al pago.", f.cart.View().Message)
	require.NotNil(t, f.gate.Pending())
	assert.Equal(t, uint64(31), f.gate.Pending().ID)

	id, err := f.store.Get(ctx, storage.KeyLastOrderID)
	require.NoError(t, err)
	assert.Equal(t, "31", id)
	_, err = f.store.Get(ctx, storage.KeyLastOrderTimestamp)
	require.NoError(t, err)
	_, err = f.store.Get(ctx, storage.KeyCart)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubmit_EmptyCartNeverCallsBackend(t *testing.T) {
	f := setupFixture(t, customer())

	_, err := f.submitter.Submit(context.Background())
	assertDenial(t, err, enum.DenialEmptyCart)
	assert.Zero(t, f.backend.CreateCalls)
}

func TestSubmit_Denials(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := setupFixture(t, &mockSession{})
		f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)

		_, err := f.submitter.Submit(context.Background())
		assertDenial(t, err, enum.DenialUnauthenticated)
		assert.Zero(t, f.backend.CreateCalls)
	})

	t.Run("admin", func(t *testing.T) {
		f := setupFixture(t, &mockSession{authenticated: true, admin: true, userID: 1})

		_, err := f.submitter.Submit(context.Background())
		assertDenial(t, err, enum.DenialAdminSession)
	})

	t.Run("pending order", func(t *testing.T) {
		f := setupFixture(t, customer())
		f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
		f.gate.Set(context.Background(), pendingOrder(9, "80"))

		_, err := f.submitter.Submit(context.Background())
		d := assertDenial(t, err, enum.DenialPendingOrder)
		assert.Contains(t, d.Message, "#9")
		assert.Zero(t, f.backend.CreateCalls)
	})
}

func TestSubmit_StockShortage(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 3)
	f.stock(t, instrument(2, "Batería Pearl", 5, "900"), 2)
	f.stock(t, instrument(3, "Púas", 50, "1"), 10)

	// 送出前庫存已被其他顧客買走
	f.backend.Catalog[1] = instrument(1, "Guitarra Fender", 1, "100")
	f.backend.Catalog[2] = instrument(2, "Batería Pearl", 0, "900")

	_, err := f.submitter.Submit(context.Background())
	d := assertDenial(t, err, enum.DenialInsufficientStock)
	assert.Equal(t, "Los siguientes productos no tienen stock suficiente: Guitarra Fender, Batería Pearl", d.Message)
	assert.Zero(t, f.backend.CreateCalls)

	// 購物車保留數量，但庫存快照已更新
	lines := f.cart.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 1, lines[0].Instrument.Stock)
}

func TestSubmit_InvalidPriceAfterRefresh(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)

	noPrice := instrument(1, "Guitarra Fender", 5, "100")
	noPrice.Price = nil
	f.backend.Catalog[1] = noPrice

	_, err := f.submitter.Submit(context.Background())
	d := assertDenial(t, err, enum.DenialInvalidItems)
	assert.Equal(t, "Los siguientes productos tienen datos inválidos: Guitarra Fender", d.Message)
}

func TestSubmit_RefreshFailureUsesSnapshot(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
	delete(f.backend.Catalog, 1)
	f.backend.CreateResult = &models.Order{ID: 3, Total: decimal.NewFromInt(100)}

	order, err := f.submitter.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), order.ID)
}

func TestSubmit_GhostSuccess(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
	f.backend.CreateResult = &models.Order{}

	_, err := f.submitter.Submit(context.Background())
	require.ErrorIs(t, err, api.ErrGhostSuccess)
	assert.Len(t, f.cart.Lines(), 1)
	assert.Nil(t, f.gate.Pending())
}

func TestSubmit_ConflictRechecksGate(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
	f.backend.CreateErr = &api.Error{Status: http.StatusConflict, Message: "pending order"}
	f.backend.PendingOrderResult = pendingOrder(44, "120")

	_, err := f.submitter.Submit(context.Background())
	require.Error(t, err)
	_, denied := models.AsDenial(err)
	assert.False(t, denied)
	assert.Equal(t, 1, f.backend.PendingCalls)

	require.NotNil(t, f.gate.Pending())
	assert.Equal(t, uint64(44), f.gate.Pending().ID)
	// 購物車跟隨待付款訂單清空
	assert.Empty(t, f.cart.Lines())
}

func TestSubmit_BackendErrorKeepsCart(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
	f.backend.CreateErr = errors.New("connection reset")

	_, err := f.submitter.Submit(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.backend.PendingCalls)
	assert.Len(t, f.cart.Lines(), 1)
}

// blockingBackend holds CreateOrder until release is closed.
type blockingBackend struct {
	*mockBackend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) CreateOrder(ctx context.Context, req *models.OrderRequest, key string) (*models.Order, error) {
	close(b.entered)
	<-b.release
	return b.mockBackend.CreateOrder(ctx, req, key)
}

func TestSubmit_InFlight(t *testing.T) {
	f := setupFixture(t, customer())
	f.stock(t, instrument(1, "Guitarra Fender", 5, "100"), 1)
	f.backend.CreateResult = &models.Order{ID: 5, Total: decimal.NewFromInt(100)}

	blocking := &blockingBackend{
		mockBackend: f.backend,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	f.submitter.backend = blocking

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.submitter.Submit(context.Background())
	}()

	<-blocking.entered
	_, err := f.submitter.Submit(context.Background())
	assertDenial(t, err, enum.DenialInFlight)

	close(blocking.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, f.backend.CreateCalls)
}
