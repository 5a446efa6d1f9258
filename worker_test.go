package hendrix

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap/zaptest"
)

type countingProcessor struct {
	mu   sync.Mutex
	seen map[string]int
	err  error
}

func (p *countingProcessor) ProcessEvent(_ context.Context, event *stripe.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[event.ID]++
	return p.err
}

func TestWorkerPool_ProcessesQueuedEvents(t *testing.T) {
	processor := &countingProcessor{seen: map[string]int{}}
	wp := NewWorkerPool(3, processor, zaptest.NewLogger(t))

	ids := []string{"evt_1", "evt_2", "evt_3", "evt_4", "evt_5"}
	for _, id := range ids {
		assert.True(t, wp.Submit(context.Background(), &stripe.Event{ID: id}))
	}
	wp.Shutdown()

	for _, id := range ids {
		assert.Equal(t, 1, processor.seen[id], id)
	}
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	processor := &countingProcessor{seen: map[string]int{}}
	wp := NewWorkerPool(0, processor, zaptest.NewLogger(t))

	wp.Shutdown()
	wp.Shutdown()

	assert.False(t, wp.Submit(context.Background(), &stripe.Event{ID: "evt_late"}))
	assert.Empty(t, processor.seen)
}

func TestWorkerPool_ProcessorErrorsAreLogged(t *testing.T) {
	processor := &countingProcessor{seen: map[string]int{}, err: errors.New("boom")}
	wp := NewWorkerPool(1, processor, zaptest.NewLogger(t))

	assert.True(t, wp.Submit(context.Background(), &stripe.Event{ID: "evt_1", Type: stripe.EventTypeCheckoutSessionCompleted}))
	wp.Shutdown()
	assert.Equal(t, 1, processor.seen["evt_1"])
}
