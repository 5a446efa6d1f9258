// Package auth keeps the signed-in user's token and profile.
//
// The token is treated as opaque. Role and account state come from the
// backend's whoami endpoint, never from decoding the token. Role checks made
// here only shape what the client offers; the backend authorizes every call.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/storage"
)

var (
	ErrLoginFailed     = errors.New("auth: login failed")
	ErrAccountInactive = errors.New("auth: account is inactive")
	ErrNotSignedIn     = errors.New("auth: not signed in")
)

type Backend interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error)
	Whoami(ctx context.Context) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
}

type Session struct {
	mu      sync.RWMutex
	token   string
	user    *models.User
	backend Backend
	store   storage.Store
	logger  *zap.Logger
}

func NewSession(backend Backend, store storage.Store, logger *zap.Logger) *Session {
	return &Session{
		backend: backend,
		store:   store,
		logger:  logger,
	}
}

// Restore loads a previously stored token and user record. A corrupt user
// record is discarded together with its token.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	raw, err := s.store.Get(ctx, storage.KeyUser)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read user: %w", err)
	}

	var user models.User
	if raw == "" || json.Unmarshal([]byte(raw), &user) != nil {
		s.logger.Warn("Discarding stored session with unreadable user record")
		return s.Logout(ctx)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	return nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.User, error) {
	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if !res.Success || res.Token == "" || res.ID == 0 {
		if res.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginFailed, res.Message)
		}
		return nil, ErrLoginFailed
	}
	if !res.Active {
		return nil, ErrAccountInactive
	}

	user := &models.User{
		ID:     res.ID,
		Email:  res.Email,
		Role:   res.Role,
		Active: res.Active,
	}
	if err = s.establish(ctx, res.Token, user); err != nil {
		return nil, err
	}

	s.logger.Info("Signed in", zap.Uint64("user_id", user.ID), zap.String("role", string(user.Role)))
	return cloneUser(user), nil
}

// Register creates an account. When the backend returns a token the new user
// is signed in right away.
func (s *Session) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	res, err := s.backend.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	user := &models.User{
		ID:       res.ID,
		Name:     req.Name,
		LastName: req.LastName,
		Email:    req.Email,
		Role:     res.Role,
		Active:   res.Active,
	}
	if res.Token != "" && res.ID != 0 {
		if err = s.establish(ctx, res.Token, user); err != nil {
			return nil, err
		}
	}
	return cloneUser(user), nil
}

// Refresh asks the backend who the token belongs to. A rejected token signs
// the session out.
func (s *Session) Refresh(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return ErrNotSignedIn
	}

	user, err := s.backend.Whoami(ctx)
	if api.IsUnauthorized(err) {
		s.logger.Info("Token rejected by backend, signing out")
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			return logoutErr
		}
		return ErrNotSignedIn
	}
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if !user.Active {
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			return logoutErr
		}
		return ErrAccountInactive
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	return s.establish(ctx, token, user)
}

func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := storage.DeleteAll(ctx, s.store, storage.KeyToken, storage.KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Session) establish(ctx context.Context, token string, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if err = s.store.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if err = s.store.Set(ctx, storage.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// Token implements api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// IsAdmin is a presentation hint only.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

func (s *Session) UserID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	return cloneUser(s.user)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}
