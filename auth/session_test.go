package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/storage"
)

// mockBackend implements Backend and UserBackend for testing
type mockBackend struct {
	LoginResponse    *models.LoginResponse
	LoginErr         error
	RegisterResponse *models.LoginResponse
	WhoamiUser       *models.User
	WhoamiErr        error
	UsersList        []models.User
	Updated          *models.AdminUserUpdate
	ResetMessage     string
	ResetErr         error
	TokenValid       bool
	TokenErr         error
	ResetCalls       int
	LastEmail        string
	LastPassword     string
}

func (m *mockBackend) Login(_ context.Context, _, _ string) (*models.LoginResponse, error) {
	return m.LoginResponse, m.LoginErr
}

func (m *mockBackend) Register(_ context.Context, _ *models.RegisterRequest) (*models.LoginResponse, error) {
	return m.RegisterResponse, nil
}

func (m *mockBackend) Whoami(_ context.Context) (*models.User, error) {
	return m.WhoamiUser, m.WhoamiErr
}

func (m *mockBackend) Users(_ context.Context) ([]models.User, error) {
	return m.UsersList, nil
}

func (m *mockBackend) UpdateUser(_ context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error) {
	m.Updated = update
	return &models.User{ID: id, Role: update.Role, Active: update.Active}, nil
}

func (m *mockBackend) ForgotPassword(_ context.Context, email string) (string, error) {
	m.ResetCalls++
	m.LastEmail = email
	return m.ResetMessage, m.ResetErr
}

func (m *mockBackend) VerifyResetToken(_ context.Context, _ string) (bool, error) {
	return m.TokenValid, m.TokenErr
}

func (m *mockBackend) ResetPassword(_ context.Context, _, password string) (string, error) {
	m.ResetCalls++
	m.LastPassword = password
	return m.ResetMessage, m.ResetErr
}

func customerLogin() *models.LoginResponse {
	return &models.LoginResponse{ID: 7, Email: "ana@hendrix.com", Role: enum.RoleUser, Token: "tok", Success: true, Active: true}
}

func TestLogin_PersistsSession(t *testing.T) {
	store := storage.NewMemory()
	backend := &mockBackend{LoginResponse: customerLogin()}
	s := NewSession(backend, store, zaptest.NewLogger(t))
	ctx := context.Background()

	user, err := s.Login(ctx, "ana@hendrix.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), user.ID)
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.IsAdmin())
	assert.Equal(t, "tok", s.Token())

	// A new session on the same store picks the login up
	restored := NewSession(backend, store, zaptest.NewLogger(t))
	require.NoError(t, restored.Restore(ctx))
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, uint64(7), restored.UserID())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		res     *models.LoginResponse
		wantErr error
	}{
		{"unsuccessful", &models.LoginResponse{Success: false, Message: "Clave incorrecta"}, ErrLoginFailed},
		{"no token", &models.LoginResponse{Success: true, ID: 7, Active: true}, ErrLoginFailed},
		{"inactive", &models.LoginResponse{Success: true, ID: 7, Token: "tok", Active: false}, ErrAccountInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&mockBackend{LoginResponse: tt.res}, storage.NewMemory(), zaptest.NewLogger(t))

			_, err := s.Login(context.Background(), "a@b.c", "x")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestRestore_CorruptUserIsDiscarded(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "tok"))
	require.NoError(t, store.Set(ctx, storage.KeyUser, "{not json"))

	s := NewSession(&mockBackend{}, store, zaptest.NewLogger(t))
	require.NoError(t, s.Restore(ctx))
	assert.False(t, s.IsAuthenticated())

	_, err := store.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("not signed in", func(t *testing.T) {
		s := NewSession(&mockBackend{}, storage.NewMemory(), zaptest.NewLogger(t))
		assert.ErrorIs(t, s.Refresh(ctx), ErrNotSignedIn)
	})

	t.Run("role comes from whoami", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: customerLogin()}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "ana@hendrix.com", "secret")
		require.NoError(t, err)

		backend.WhoamiUser = &models.User{ID: 7, Email: "ana@hendrix.com", Role: enum.RoleAdmin, Active: true}
		require.NoError(t, s.Refresh(ctx))
		assert.True(t, s.IsAdmin())
		assert.Equal(t, "tok", s.Token())
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: customerLogin()}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "ana@hendrix.com", "secret")
		require.NoError(t, err)

		backend.WhoamiErr = &api.Error{Status: http.StatusUnauthorized, Message: "expired"}
		assert.ErrorIs(t, s.Refresh(ctx), ErrNotSignedIn)
		assert.False(t, s.IsAuthenticated())
	})

	t.Run("deactivated account signs out", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: customerLogin()}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "ana@hendrix.com", "secret")
		require.NoError(t, err)

		backend.WhoamiUser = &models.User{ID: 7, Active: false}
		assert.ErrorIs(t, s.Refresh(ctx), ErrAccountInactive)
		assert.False(t, s.IsAuthenticated())
	})
}

func TestUserReturnsCopy(t *testing.T) {
	s := NewSession(&mockBackend{LoginResponse: customerLogin()}, storage.NewMemory(), zaptest.NewLogger(t))
	_, err := s.Login(context.Background(), "ana@hendrix.com", "secret")
	require.NoError(t, err)

	u := s.User()
	u.Role = enum.RoleAdmin
	assert.False(t, s.IsAdmin())
}

func TestAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("customer is refused", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: customerLogin()}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "ana@hendrix.com", "secret")
		require.NoError(t, err)

		_, err = NewAdmin(backend, s, zaptest.NewLogger(t)).ListUsers(ctx)
		assert.True(t, models.IsDenial(err, enum.DenialNotAdmin))
	})

	adminLogin := &models.LoginResponse{ID: 1, Email: "admin@hendrix.com", Role: enum.RoleAdmin, Token: "adm", Success: true, Active: true}

	t.Run("update user", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: adminLogin}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "admin@hendrix.com", "secret")
		require.NoError(t, err)
		admin := NewAdmin(backend, s, zaptest.NewLogger(t))

		user, err := admin.UpdateUser(ctx, 7, &models.AdminUserUpdate{Role: enum.RoleAdmin, Active: true})
		require.NoError(t, err)
		assert.Equal(t, enum.RoleAdmin, user.Role)

		_, err = admin.UpdateUser(ctx, 7, &models.AdminUserUpdate{Role: "ROOT", Active: true})
		assert.True(t, models.IsDenial(err, enum.DenialInvalidRole))
	})

	t.Run("no self demotion", func(t *testing.T) {
		backend := &mockBackend{LoginResponse: adminLogin}
		s := NewSession(backend, storage.NewMemory(), zaptest.NewLogger(t))
		_, err := s.Login(ctx, "admin@hendrix.com", "secret")
		require.NoError(t, err)

		_, err = NewAdmin(backend, s, zaptest.NewLogger(t)).UpdateUser(ctx, 1, &models.AdminUserUpdate{Role: enum.RoleUser, Active: true})
		assert.True(t, models.IsDenial(err, enum.DenialInvalidRole))
		assert.Nil(t, backend.Updated)
	})
}
