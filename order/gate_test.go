package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

func pendingOrder(id uint64, total string) *models.Order {
	return &models.Order{ID: id, Status: enum.OrderStatusPendingPayment, Total: decimal.RequireFromString(total)}
}

func TestCheckRemote_ActivatesGate(t *testing.T) {
	backend := &mockBackend{PendingOrderResult: pendingOrder(12, "450")}
	g := NewGate(backend, customer(), zaptest.NewLogger(t))

	var got *models.Order
	var message string
	g.Subscribe(func(_ context.Context, o *models.Order, msg string) {
		got, message = o, msg
	})

	order, err := g.CheckRemote(context.Background())
	require.NoError(t, err)
	require.NotNil(t, order)
	require.NotNil(t, got)
	assert.Equal(t, uint64(12), got.ID)
	assert.Equal(t, "Tienes el pedido #12 pendiente de pago ($450.00). Completa el pago antes de agregar nuevos productos.", message)
	assert.Equal(t, uint64(12), g.Pending().ID)
}

func TestCheckRemote_OncePerSession(t *testing.T) {
	backend := &mockBackend{}
	g := NewGate(backend, customer(), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := g.CheckRemote(ctx)
	require.NoError(t, err)
	_, err = g.CheckRemote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.PendingCalls)

	_, err = g.Recheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.PendingCalls)
}

func TestCheckRemote_FailureStillMarksChecked(t *testing.T) {
	backend := &mockBackend{PendingErr: errors.New("connection refused")}
	g := NewGate(backend, customer(), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := g.CheckRemote(ctx)
	require.Error(t, err)
	_, err = g.CheckRemote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.PendingCalls)
	assert.Nil(t, g.Pending())
}

func TestCheckRemote_SkipsAnonymousAndAdmin(t *testing.T) {
	for _, session := range []*mockSession{{}, {authenticated: true, admin: true, userID: 1}} {
		backend := &mockBackend{PendingOrderResult: pendingOrder(1, "10")}
		g := NewGate(backend, session, zaptest.NewLogger(t))

		order, err := g.CheckRemote(context.Background())
		require.NoError(t, err)
		assert.Nil(t, order)
		assert.Zero(t, backend.PendingCalls)
	}
}

func TestPendingReturnsCopy(t *testing.T) {
	g := NewGate(&mockBackend{}, customer(), zaptest.NewLogger(t))
	g.Set(context.Background(), pendingOrder(4, "10"))

	p := g.Pending()
	p.ID = 99
	assert.Equal(t, uint64(4), g.Pending().ID)
}

func TestClearOrder(t *testing.T) {
	g := NewGate(&mockBackend{}, customer(), zaptest.NewLogger(t))
	ctx := context.Background()

	var cleared bool
	g.Subscribe(func(_ context.Context, o *models.Order, _ string) {
		cleared = o == nil
	})

	g.Set(ctx, pendingOrder(4, "10"))
	assert.False(t, g.ClearOrder(ctx, 5))
	assert.NotNil(t, g.Pending())

	assert.True(t, g.ClearOrder(ctx, 4))
	assert.Nil(t, g.Pending())
	assert.True(t, cleared)
}

func TestListenerMayReadGate(t *testing.T) {
	g := NewGate(&mockBackend{}, customer(), zaptest.NewLogger(t))

	var seen *models.Order
	g.Subscribe(func(_ context.Context, _ *models.Order, _ string) {
		// listeners run without the gate lock held
		seen = g.Pending()
	})

	g.Set(context.Background(), pendingOrder(8, "10"))
	require.NotNil(t, seen)
	assert.Equal(t, uint64(8), seen.ID)
}

func TestGateConcurrentAccess(t *testing.T) {
	g := NewGate(&mockBackend{}, customer(), zaptest.NewLogger(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(id uint64) {
			defer wg.Done()
			g.Set(ctx, pendingOrder(id, "1"))
		}(uint64(i + 1))
		go func() {
			defer wg.Done()
			_ = g.Pending()
			g.Clear(ctx)
		}()
	}
	wg.Wait()
}
