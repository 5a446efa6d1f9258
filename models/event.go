package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Event 記錄已處理過的付款事件，用來避免重複處理
type Event struct {
	ID        string           `json:"id"`
	Type      stripe.EventType `json:"type"`
	Reference string           `json:"reference,omitempty"`
	Processed bool             `json:"processed"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
