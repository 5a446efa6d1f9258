package models

import (
	"errors"

	"gofalre.io/hendrix/models/enum"
)

// Denial is a refused user action. It carries a message meant for the end
// user and never indicates a fault in the client itself.
type Denial struct {
	Reason  enum.DenialReason
	Message string
}

func NewDenial(reason enum.DenialReason, message string) *Denial {
	return &Denial{Reason: reason, Message: message}
}

func (d *Denial) Error() string {
	return d.Message
}

// AsDenial unwraps err into a Denial when it is one.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDenial reports whether err was denied for the given reason.
func IsDenial(err error, reason enum.DenialReason) bool {
	d, ok := AsDenial(err)
	return ok && d.Reason == reason
}
