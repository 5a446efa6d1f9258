package enum

// PaymentStatus is the resolution state of a hosted checkout session as
// reported by the backend.
type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInProcess PaymentStatus = "in_process"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether polling should stop on this status. Unknown
// values are never terminal.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected
}
