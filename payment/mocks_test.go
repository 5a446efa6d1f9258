package payment

import (
	"context"
	"sync"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

// mockStatusBackend answers PaymentStatus from a script. The last entry
// repeats once the script runs out.
type mockStatusBackend struct {
	mu       sync.Mutex
	script   []enum.PaymentStatus
	err      error
	calls    int
	lastRef  string
	blocking chan struct{}
	entered  chan struct{}
}

func (m *mockStatusBackend) PaymentStatus(_ context.Context, reference string) (*models.PaymentStatusReport, error) {
	m.mu.Lock()
	m.calls++
	m.lastRef = reference
	entered, blocking := m.entered, m.blocking
	m.mu.Unlock()

	if entered != nil {
		close(entered)
		<-blocking
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return &models.PaymentStatusReport{PreferenceID: reference, Status: enum.PaymentStatusPending}, nil
	}
	status := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	return &models.PaymentStatusReport{PreferenceID: reference, Status: status}, nil
}

func (m *mockStatusBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockStatusBackend) setScript(statuses ...enum.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = statuses
}

type mockGate struct {
	mu      sync.Mutex
	cleared int
}

func (m *mockGate) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *mockGate) Cleared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

type mockCart struct {
	mu     sync.Mutex
	resets int
}

func (m *mockCart) Reset(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *mockCart) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

type mockCheckoutBackend struct {
	checkout *models.Checkout
	err      error
	orderID  uint64
}

func (m *mockCheckoutBackend) CreatePayment(_ context.Context, orderID uint64) (*models.Checkout, error) {
	m.orderID = orderID
	return m.checkout, m.err
}

type mockSession struct {
	admin bool
}

func (m *mockSession) IsAdmin() bool { return m.admin }
