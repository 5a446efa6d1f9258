package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gofalre.io/hendrix/models"
)

func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var res models.LoginResponse
	req := &models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/usuarios/login", req, &res, nil); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/usuarios/registro", req, &res, nil); err != nil {
		return nil, err
	}
	return &res, nil
}

// Whoami returns the authoritative record for the bearer of the current token.
func (c *Client) Whoami(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/usuarios/me", nil, &user, nil); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/usuarios", nil, &users, nil); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) UpdateUser(ctx context.Context, id uint64, update *models.AdminUserUpdate) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/usuarios/%d", id), update, &user, nil); err != nil {
		return nil, err
	}
	return &user, nil
}

// ForgotPassword asks the backend to mail a reset link to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var res models.MessageResponse
	req := &models.ForgotPasswordRequest{Email: email}
	if err := c.do(ctx, http.MethodPost, "/auth/forgot-password", req, &res, nil); err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	var res models.ResetTokenStatus
	path := "/auth/verify-reset-token/" + url.PathEscape(token)
	if err := c.do(ctx, http.MethodGet, path, nil, &res, nil); err != nil {
		return false, err
	}
	return res.Valid, nil
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var res models.MessageResponse
	req := &models.ResetPasswordRequest{Token: token, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/reset-password", req, &res, nil); err != nil {
		return "", err
	}
	return res.Message, nil
}
