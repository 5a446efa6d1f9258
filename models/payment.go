package models

import (
	"gofalre.io/hendrix/models/enum"
)

// Checkout 是後端建立的付款頁面資訊
type Checkout struct {
	PreferenceID     string `json:"preferenceId"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint,omitempty"`
	Error            string `json:"error,omitempty"`
}

// URL picks the production checkout URL, falling back to the sandbox one.
func (c *Checkout) URL() string {
	if c.InitPoint != "" {
		return c.InitPoint
	}
	return c.SandboxInitPoint
}

type PaymentStatusReport struct {
	PreferenceID string             `json:"preferenceId"`
	Status       enum.PaymentStatus `json:"estado"`
	Message      string             `json:"mensaje,omitempty"`
	Timestamp    string             `json:"timestamp,omitempty"`
}
