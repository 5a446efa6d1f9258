package hendrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/auth"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/payment"
	"gofalre.io/hendrix/storage"
)

// fakeAPI is an in-memory storefront backend.
type fakeAPI struct {
	mu          sync.Mutex
	instruments map[uint64]models.Instrument
	pending     *models.Order
	nextOrderID uint64
	statuses    []enum.PaymentStatus
	statusCalls int
	keys        []string
	// me answers /usuarios/me; nil means the customer signed in by login
	me        *models.User
	meRevoked bool
}

func newFakeAPI() *fakeAPI {
	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return &fakeAPI{
		instruments: map[uint64]models.Instrument{
			1: {ID: 1, Name: "Guitarra Fender", Stock: 5, Price: price("100"), Category: models.Category{ID: 1}},
			2: {ID: 2, Name: "Púas", Stock: 10, Price: price("50"), Category: models.Category{ID: 1}},
		},
		nextOrderID: 31,
	}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/usuarios/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.LoginResponse{
			ID: 7, Email: "ana@example.com", Role: enum.RoleUser, Token: "tok-7", Success: true, Active: true,
		})
	})

	mux.HandleFunc("GET /api/usuarios/me", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.meRevoked {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token inválido"})
			return
		}
		me := models.User{ID: 7, Email: "ana@example.com", Role: enum.RoleUser, Active: true}
		if f.me != nil {
			me = *f.me
		}
		writeJSON(w, http.StatusOK, me)
	})

	mux.HandleFunc("GET /api/instrumentos/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseUint(r.PathValue("id"), 10, 64)
		f.mu.Lock()
		i, ok := f.instruments[id]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Instrumento no encontrado"})
			return
		}
		writeJSON(w, http.StatusOK, i)
	})

	mux.HandleFunc("GET /api/pedidos/pendiente", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, models.PendingOrderResponse{HasPending: f.pending != nil, Order: f.pending})
	})

	mux.HandleFunc("POST /api/pedidos", func(w http.ResponseWriter, r *http.Request) {
		var req models.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.pending != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Ya existe un pedido pendiente"})
			return
		}
		total := decimal.Zero
		for _, line := range req.Lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		f.pending = &models.Order{ID: f.nextOrderID, Status: enum.OrderStatusPendingPayment, Total: total}
		f.nextOrderID++
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusCreated, f.pending)
	})

	mux.HandleFunc("POST /api/pagos/crear/{id}", func(w http.ResponseWriter, r *http.Request) {
		ref := "pref-" + r.PathValue("id")
		writeJSON(w, http.StatusOK, models.Checkout{PreferenceID: ref, InitPoint: "https://checkout.example/" + ref})
	})

	mux.HandleFunc("GET /api/pagos/verificar-estado/{ref}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		status := enum.PaymentStatusPending
		if f.statusCalls < len(f.statuses) {
			status = f.statuses[f.statusCalls]
		}
		f.statusCalls++
		if status == enum.PaymentStatusApproved {
			f.pending = nil
		}
		writeJSON(w, http.StatusOK, models.PaymentStatusReport{PreferenceID: r.PathValue("ref"), Status: status})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupService(t *testing.T, backend *fakeAPI, store storage.Store) Service {
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	client := api.NewClient(api.Config{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second}, srv.Client(), logger)
	svc, err := NewService(context.Background(), Options{
		Client: client,
		Store:  store,
		Poller: payment.Config{
			MaxAttempts:     5,
			InitialDelay:    time.Millisecond,
			CompletionDelay: time.Millisecond,
			Schedule:        func(int) time.Duration { return time.Millisecond },
		},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestPurchaseFlow(t *testing.T) {
	backend := newFakeAPI()
	backend.statuses = []enum.PaymentStatus{enum.PaymentStatusPending, enum.PaymentStatusApproved}
	store := storage.NewMemory()
	svc := setupService(t, backend, store)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	// 1. 加入購物車
	require.NoError(t, svc.AddToCart(ctx, 1, 2))
	require.NoError(t, svc.AddToCart(ctx, 2, 1))
	view := svc.Cart()
	assert.Equal(t, 3, view.TotalItems)
	assert.Equal(t, "250", view.TotalPrice.String())
	assert.True(t, view.Visible)

	err = svc.AddToCart(ctx, 99, 1)
	assert.True(t, models.IsDenial(err, enum.DenialInvalidProduct), "got %v", err)

	// 2. 送出訂單
	order, err := svc.SubmitOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), order.ID)
	assert.Empty(t, svc.Cart().Lines)
	require.Len(t, backend.keys, 1)
	assert.NotEmpty(t, backend.keys[0])

	err = svc.AddToCart(ctx, 1, 1)
	assert.True(t, models.IsDenial(err, enum.DenialPendingOrder), "got %v", err)

	// 3. 開始付款並等待確認
	checkout, err := svc.StartPayment(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/pref-31", checkout.URL())

	var mu sync.Mutex
	var snapshots []payment.Snapshot
	state, err := svc.WatchPayment(ctx, func(s payment.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, s)
	})
	require.NoError(t, err)
	assert.Equal(t, enum.PollStateApproved, state)

	mu.Lock()
	require.NotEmpty(t, snapshots)
	assert.Equal(t, "pref-31", snapshots[len(snapshots)-1].Reference)
	mu.Unlock()

	// 4. 付款完成後可以再次購物
	_, err = store.Get(ctx, storage.KeyPaymentReference)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, svc.AddToCart(ctx, 1, 1))
}

func TestRestoredSessionFindsPendingOrder(t *testing.T) {
	backend := newFakeAPI()
	backend.pending = &models.Order{ID: 12, Status: enum.OrderStatusPendingPayment, Total: decimal.NewFromInt(450)}

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "tok-7"))
	require.NoError(t, store.Set(ctx, storage.KeyUser, `{"id":7,"email":"ana@example.com","rol":"USER","activo":true}`))
	require.NoError(t, store.Set(ctx, storage.KeyCart,
		`{"items":[{"instrumento":{"idInstrumento":1,"denominacion":"Guitarra Fender","stock":5,"precioActual":"100"},"cantidad":1}],"timestamp":1}`))

	svc := setupService(t, backend, store)

	require.NotNil(t, svc.CurrentUser())
	view := svc.Cart()
	assert.Empty(t, view.Lines)
	assert.Equal(t, "Tienes el pedido #12 pendiente de pago ($450.00). Completa el pago antes de agregar nuevos productos.",
		view.Message)

	pending, err := svc.PendingOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), pending.ID)

	_, err = svc.SubmitOrder(ctx)
	assert.True(t, models.IsDenial(err, enum.DenialPendingOrder), "got %v", err)
}

func TestRestoredSession_RoleComesFromBackend(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "tok-7"))
	require.NoError(t, store.Set(ctx, storage.KeyUser, `{"id":7,"email":"ana@example.com","rol":"ADMIN","activo":true}`))

	svc := setupService(t, newFakeAPI(), store)

	user := svc.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, enum.RoleUser, user.Role)
	assert.False(t, user.IsAdmin())

	// 儲存的紀錄也已更新
	raw, err := store.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.Contains(t, raw, `"USER"`)

	_, err = svc.ListUsers(ctx)
	_, denied := models.AsDenial(err)
	assert.True(t, denied, "got %v", err)
}

func TestRestoredSession_RevokedTokenSignsOut(t *testing.T) {
	backend := newFakeAPI()
	backend.meRevoked = true

	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "tok-7"))
	require.NoError(t, store.Set(ctx, storage.KeyUser, `{"id":7,"email":"ana@example.com","rol":"USER","activo":true}`))

	svc := setupService(t, backend, store)

	assert.Nil(t, svc.CurrentUser())
	_, err := store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshSession_DeactivatedAccount(t *testing.T) {
	backend := newFakeAPI()
	svc := setupService(t, backend, storage.NewMemory())
	ctx := context.Background()

	_, err := svc.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.me = &models.User{ID: 7, Email: "ana@example.com", Role: enum.RoleUser, Active: false}
	backend.mu.Unlock()

	_, err = svc.RefreshSession(ctx)
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
	assert.Nil(t, svc.CurrentUser())
}

func TestStartPayment_NoPendingOrder(t *testing.T) {
	svc := setupService(t, newFakeAPI(), storage.NewMemory())
	ctx := context.Background()

	_, err := svc.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.StartPayment(ctx, 0)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestCheckPayment_WithoutWatch(t *testing.T) {
	backend := newFakeAPI()
	backend.statuses = []enum.PaymentStatus{enum.PaymentStatusRejected}
	store := storage.NewMemory()
	require.NoError(t, store.Set(context.Background(), storage.KeyPaymentReference, "pref-31"))
	svc := setupService(t, backend, store)

	snap, err := svc.CheckPayment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enum.PollStateRejected, snap.State)
	assert.Equal(t, "El pago fue rechazado.", snap.Message)
}

func TestLogoutClearsGate(t *testing.T) {
	backend := newFakeAPI()
	backend.pending = &models.Order{ID: 12, Status: enum.OrderStatusPendingPayment, Total: decimal.NewFromInt(450)}
	svc := setupService(t, backend, storage.NewMemory())
	ctx := context.Background()

	_, err := svc.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, models.IsDenial(svc.AddToCart(ctx, 1, 1), enum.DenialPendingOrder))

	require.NoError(t, svc.Logout(ctx))
	assert.Nil(t, svc.CurrentUser())
	require.NoError(t, svc.AddToCart(ctx, 1, 1))
}
