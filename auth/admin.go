package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

type UserBackend interface {
	Users(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error)
}

// Admin manages user accounts on behalf of an administrator session.
type Admin struct {
	backend UserBackend
	session *Session
	logger  *zap.Logger
}

func NewAdmin(backend UserBackend, session *Session, logger *zap.Logger) *Admin {
	return &Admin{
		backend: backend,
		session: session,
		logger:  logger,
	}
}

func (a *Admin) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := a.requireAdmin(); err != nil {
		return nil, err
	}

	users, err := a.backend.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser changes a user's role and active flag, and optionally resets the
// password. An administrator cannot demote or deactivate themselves.
func (a *Admin) UpdateUser(ctx context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error) {
	if err := a.requireAdmin(); err != nil {
		return nil, err
	}
	if !update.Role.Valid() {
		return nil, models.NewDenial(enum.DenialInvalidRole, fmt.Sprintf("Rol desconocido: %q", update.Role))
	}
	if id == a.session.UserID() && (update.Role != enum.RoleAdmin || !update.Active) {
		return nil, models.NewDenial(enum.DenialInvalidRole, "No puedes quitarte tu propio acceso de administrador")
	}

	user, err := a.backend.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}

	a.logger.Info("User updated",
		zap.Uint64("user_id", id),
		zap.String("role", string(update.Role)),
		zap.Bool("active", update.Active))
	return user, nil
}

func (a *Admin) requireAdmin() error {
	if !a.session.IsAdmin() {
		return models.NewDenial(enum.DenialNotAdmin, "Esta acción requiere una cuenta de administrador")
	}
	return nil
}
