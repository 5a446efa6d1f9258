package models

import (
	"gofalre.io/hendrix/models/enum"
)

type User struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"nombre,omitempty"`
	LastName string    `json:"apellido,omitempty"`
	Email    string    `json:"email"`
	Role     enum.Role `json:"rol"`
	Active   bool      `json:"activo"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == enum.RoleAdmin
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"clave"`
}

type LoginResponse struct {
	ID      uint64    `json:"id"`
	Email   string    `json:"email"`
	Role    enum.Role `json:"rol"`
	Token   string    `json:"token"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Active  bool      `json:"activo"`
}

type RegisterRequest struct {
	Name     string    `json:"nombre"`
	LastName string    `json:"apellido"`
	Email    string    `json:"email"`
	Password string    `json:"clave"`
	Role     enum.Role `json:"rol,omitempty"`
}

// AdminUserUpdate 管理員更新使用者的請求
type AdminUserUpdate struct {
	Role     enum.Role `json:"rol"`
	Active   bool      `json:"activo"`
	Password string    `json:"clave,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// MessageResponse 只帶一段訊息的回應
type MessageResponse struct {
	Message string `json:"message"`
}

type ResetTokenStatus struct {
	Valid bool `json:"valid"`
}
