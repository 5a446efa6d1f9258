package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

const minPasswordLength = 6

type ResetPasswordParams struct {
	Token    string
	Password string
	Confirm  string
}

func (p ResetPasswordParams) Validate() error {
	if strings.TrimSpace(p.Token) == "" {
		return models.NewDenial(enum.DenialInvalidPassword, "El enlace de recuperación no es válido")
	}
	if p.Password == "" || p.Confirm == "" {
		return models.NewDenial(enum.DenialInvalidPassword, "Por favor completa todos los campos")
	}
	if p.Password != p.Confirm {
		return models.NewDenial(enum.DenialInvalidPassword, "Las contraseñas no coinciden")
	}
	if len([]rune(p.Password)) < minPasswordLength {
		return models.NewDenial(enum.DenialInvalidPassword,
			fmt.Sprintf("La contraseña debe tener al menos %d caracteres", minPasswordLength))
	}
	return nil
}

// ForgotPassword asks the backend to mail a reset link. It works signed out.
func (s *Session) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", models.NewDenial(enum.DenialInvalidEmail, "Por favor ingresa tu email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", models.NewDenial(enum.DenialInvalidEmail, "Por favor ingresa un email válido")
	}

	message, err := s.backend.ForgotPassword(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to request password reset: %w", err)
	}
	if message == "" {
		message = "Si el email está registrado, recibirás un enlace para restablecer tu contraseña"
	}
	return message, nil
}

// VerifyResetToken reports whether a reset token can still be used. A token
// the backend refuses is reported as invalid rather than as an error.
func (s *Session) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	valid, err := s.backend.VerifyResetToken(ctx, token)
	if err != nil {
		if api.IsTransient(err) {
			return false, fmt.Errorf("failed to verify reset token: %w", err)
		}
		return false, nil
	}
	return valid, nil
}

// ResetPassword sets a new password with a mailed token. The current session,
// if any, is left untouched.
func (s *Session) ResetPassword(ctx context.Context, params ResetPasswordParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	message, err := s.backend.ResetPassword(ctx, params.Token, params.Password)
	if err != nil {
		return "", fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.Info("Password reset")
	if message == "" {
		message = "Contraseña actualizada exitosamente"
	}
	return message, nil
}
