package enum

// PollState 付款確認輪詢的狀態
type PollState string

const (
	PollStateIdle        PollState = "idle"
	PollStatePolling     PollState = "polling"
	PollStateApproved    PollState = "approved"
	PollStateRejected    PollState = "rejected"
	PollStateExhausted   PollState = "exhausted"
	PollStateNoReference PollState = "no_reference"
)

// IsTerminal reports whether the scheduled loop has stopped for good.
// Exhausted is included; a manual check can still move it forward.
func (s PollState) IsTerminal() bool {
	switch s {
	case PollStateApproved, PollStateRejected, PollStateExhausted, PollStateNoReference:
		return true
	}
	return false
}

// IsResolved reports whether the payment outcome is known.
func (s PollState) IsResolved() bool {
	return s == PollStateApproved || s == PollStateRejected
}
