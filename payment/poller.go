package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

const (
	DefaultMaxAttempts     = 20
	DefaultInitialDelay    = time.Second
	DefaultCompletionDelay = 3 * time.Second
	DefaultFastInterval    = time.Second
	DefaultFastAttempts    = 10
)

var ErrAlreadyRunning = errors.New("payment: poller is already running")

type StatusBackend interface {
	PaymentStatus(ctx context.Context, reference string) (*models.PaymentStatusReport, error)
}

type Gate interface {
	Clear(ctx context.Context)
}

type Cart interface {
	Reset(ctx context.Context, message string)
}

// Schedule returns the wait before the scheduled check numbered attempt, the
// one about to run. Attempts count from 2 since the first check waits
// Config.InitialDelay.
type Schedule func(attempt int) time.Duration

// DefaultSchedule backs off from 3s to 5s to 10s.
func DefaultSchedule(attempt int) time.Duration {
	switch {
	case attempt <= 6:
		return 3 * time.Second
	case attempt <= 12:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	CompletionDelay time.Duration
	// FastInterval replaces the schedule for FastAttempts checks once an
	// approval has been observed from outside the poll loop.
	FastInterval time.Duration
	FastAttempts int
	Schedule     Schedule
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.CompletionDelay < 0 {
		c.CompletionDelay = 0
	}
	if c.FastInterval <= 0 {
		c.FastInterval = DefaultFastInterval
	}
	if c.FastAttempts <= 0 {
		c.FastAttempts = DefaultFastAttempts
	}
	if c.Schedule == nil {
		c.Schedule = DefaultSchedule
	}
	return c
}

// Snapshot is a point-in-time copy of the polling session.
type Snapshot struct {
	State              enum.PollState
	Reference          string
	Attempt            int
	MaxAttempts        int
	LastObserved       enum.PaymentStatus
	TransitionDetected bool
	ManualInFlight     bool
	Message            string
}

// Poller follows one payment session until the backend reports it approved
// or rejected, or until the attempt budget runs out. Manual checks stay
// available after that and do not count against the budget.
type Poller struct {
	mu             sync.Mutex
	state          enum.PollState
	reference      string
	attempt        int
	lastObserved   enum.PaymentStatus
	transition     bool
	fastRemaining  int
	message        string
	manualInFlight bool
	running        bool
	stopped        bool
	completion     *time.Timer
	listeners      []func(Snapshot)

	wake         chan struct{}
	resolved     chan struct{}
	resolveOnce  sync.Once
	completed    chan struct{}
	completeOnce sync.Once

	cfg     Config
	backend StatusBackend
	refs    *ReferenceStore
	gate    Gate
	cart    Cart
	logger  *zap.Logger
}

func NewPoller(cfg Config, backend StatusBackend, refs *ReferenceStore, gate Gate, cart Cart, logger *zap.Logger) *Poller {
	return &Poller{
		state:     enum.PollStateIdle,
		wake:      make(chan struct{}, 1),
		resolved:  make(chan struct{}),
		completed: make(chan struct{}),
		cfg:       cfg.withDefaults(),
		backend:   backend,
		refs:      refs,
		gate:      gate,
		cart:      cart,
		logger:    logger,
	}
}

// OnChange registers fn to receive a snapshot after every state or message
// change. fn runs without the poller's lock held.
func (p *Poller) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) State() enum.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Reference() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reference
}

// Completed is closed once an approved payment has been cleaned up and the
// completion delay has passed.
func (p *Poller) Completed() <-chan struct{} {
	return p.completed
}

// Run polls until a terminal state and returns it. It blocks; cancelling ctx
// stops every timer the poller owns and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) (enum.PollState, error) {
	p.mu.Lock()
	if p.running {
		state := p.state
		p.mu.Unlock()
		return state, ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if err := p.ensureReference(ctx); err != nil {
		if errors.Is(err, ErrNoReference) {
			return enum.PollStateNoReference, nil
		}
		return p.State(), err
	}

	p.update(func() {
		if p.state == enum.PollStateIdle {
			p.state = enum.PollStatePolling
			p.message = "Verificando el estado del pago..."
		}
	})

	delay := p.cfg.InitialDelay
	for !p.State().IsTerminal() {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.Stop()
			return p.State(), ctx.Err()
		case <-p.resolved:
			timer.Stop()
			continue
		case <-p.wake:
			timer.Stop()
			p.tick(ctx, sourceEvent)
		case <-timer.C:
			p.tick(ctx, sourceScheduled)
		}
		delay = p.nextDelay()
	}

	state := p.State()
	if state != enum.PollStateApproved {
		return state, nil
	}
	select {
	case <-p.completed:
		return state, nil
	case <-ctx.Done():
		p.Stop()
		return state, ctx.Err()
	}
}

// CheckManually queries the backend once, outside the schedule. It is refused
// while another manual check is in flight.
func (p *Poller) CheckManually(ctx context.Context) (enum.PollState, error) {
	p.mu.Lock()
	if p.manualInFlight {
		state := p.state
		p.mu.Unlock()
		return state, models.NewDenial(enum.DenialInFlight, "Ya hay una verificación en curso")
	}
	if p.state.IsResolved() {
		state := p.state
		p.mu.Unlock()
		return state, nil
	}
	p.manualInFlight = true
	ref := p.reference
	snap := p.snapshotLocked()
	listeners := p.snapshotListeners()
	p.mu.Unlock()
	notify(listeners, snap)

	if ref == "" {
		if err := p.ensureReference(ctx); err != nil {
			p.update(func() { p.manualInFlight = false })
			if errors.Is(err, ErrNoReference) {
				return enum.PollStateNoReference, nil
			}
			return p.State(), err
		}
		ref = p.Reference()
	}

	report, err := p.backend.PaymentStatus(ctx, ref)
	state := p.settle(ctx, report, err, sourceManual)
	if err != nil {
		return state, fmt.Errorf("failed to check payment status: %w", err)
	}
	return state, nil
}

// Observe feeds a status seen outside the poll loop, such as a payment event.
// It never resolves the session by itself; an approval switches to fast
// polling and triggers an immediate confirmation query.
func (p *Poller) Observe(status enum.PaymentStatus) {
	p.mu.Lock()
	if p.state.IsResolved() {
		p.mu.Unlock()
		return
	}
	prev := p.lastObserved
	p.lastObserved = status
	if status == enum.PaymentStatusApproved && prev != enum.PaymentStatusApproved {
		p.transition = true
		p.fastRemaining = p.cfg.FastAttempts
		p.message = "¡Pago detectado! Confirmando..."
	}
	snap := p.snapshotLocked()
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	notify(listeners, snap)

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the pending completion timer and keeps a later approval from
// arming a new one. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.completion != nil {
		p.completion.Stop()
		p.completion = nil
	}
}

func (p *Poller) ensureReference(ctx context.Context) error {
	if p.Reference() != "" {
		return nil
	}

	ref, err := p.refs.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoReference) {
			p.logger.Error("Failed to load payment reference", zap.Error(err))
		}
		p.update(func() {
			p.state = enum.PollStateNoReference
			p.message = "No se encontró una referencia de pago. Revisa el estado en 'Mis Pedidos'."
		})
		return err
	}

	p.update(func() { p.reference = ref })
	return nil
}

// querySource 狀態查詢的觸發來源
type querySource int

const (
	sourceScheduled querySource = iota
	// sourceEvent 由 Observe 喚醒的確認查詢，不消耗輪詢次數
	sourceEvent
	sourceManual
)

func (p *Poller) tick(ctx context.Context, src querySource) {
	p.mu.Lock()
	if p.state != enum.PollStatePolling {
		p.mu.Unlock()
		return
	}
	if src == sourceScheduled {
		p.attempt++
	}
	ref := p.reference
	p.mu.Unlock()

	report, err := p.backend.PaymentStatus(ctx, ref)
	p.settle(ctx, report, err, src)
}

// settle applies one query result. Approved and rejected are sticky: a result
// arriving after either is dropped.
func (p *Poller) settle(ctx context.Context, report *models.PaymentStatusReport, err error, src querySource) enum.PollState {
	manual := src == sourceManual
	p.mu.Lock()
	if manual {
		p.manualInFlight = false
	}

	approvedNow := false
	switch {
	case p.state.IsResolved():
	case err != nil:
		p.logger.Warn("Payment status query failed",
			zap.String("reference", p.reference),
			zap.Int("attempt", p.attempt),
			zap.Bool("manual", manual),
			zap.Error(err))
		if manual {
			p.message = "No se pudo verificar el pago. Intenta nuevamente."
		} else {
			p.message = fmt.Sprintf("No se pudo verificar el pago, se reintentará (intento %d de %d)",
				p.attempt, p.cfg.MaxAttempts)
		}
	case report == nil:
		p.logger.Warn("Payment status query returned no report", zap.String("reference", p.reference))
	default:
		approvedNow = p.observeLocked(report.Status)
	}

	if src == sourceScheduled && p.state == enum.PollStatePolling && p.attempt >= p.cfg.MaxAttempts {
		p.state = enum.PollStateExhausted
		p.message = "La verificación automática finalizó. Verifica manualmente o revisa 'Mis Pedidos'."
		p.logger.Info("Payment polling exhausted", zap.String("reference", p.reference), zap.Int("attempts", p.attempt))
	}

	state := p.state
	snap := p.snapshotLocked()
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	if approvedNow {
		p.complete(ctx)
	}
	notify(listeners, snap)
	return state
}

func (p *Poller) observeLocked(status enum.PaymentStatus) bool {
	prev := p.lastObserved
	p.lastObserved = status
	if status == enum.PaymentStatusApproved && (prev == enum.PaymentStatusPending || prev == enum.PaymentStatusInProcess) {
		p.transition = true
	}

	switch status {
	case enum.PaymentStatusApproved:
		p.state = enum.PollStateApproved
		p.message = "¡Pago aprobado! Tu pedido fue confirmado."
		p.resolveOnce.Do(func() { close(p.resolved) })
		p.logger.Info("Payment approved", zap.String("reference", p.reference), zap.Int("attempt", p.attempt))
		return true
	case enum.PaymentStatusRejected:
		p.state = enum.PollStateRejected
		p.message = "El pago fue rechazado."
		p.resolveOnce.Do(func() { close(p.resolved) })
		p.logger.Info("Payment rejected", zap.String("reference", p.reference), zap.Int("attempt", p.attempt))
	case enum.PaymentStatusInProcess:
		p.message = p.waitingMessage("El pago está en proceso")
	default:
		p.message = p.waitingMessage("Esperando la confirmación del pago")
	}
	return false
}

func (p *Poller) waitingMessage(base string) string {
	if p.transition {
		base = "¡Pago detectado! Confirmando"
	}
	if p.state == enum.PollStateExhausted || p.state == enum.PollStateIdle || p.attempt == 0 {
		return base + "..."
	}
	return fmt.Sprintf("%s... (intento %d de %d)", base, p.attempt, p.cfg.MaxAttempts)
}

// complete runs the cleanup for an approved payment exactly once, then arms
// the completion signal.
func (p *Poller) complete(ctx context.Context) {
	p.gate.Clear(ctx)
	if err := p.refs.ClearAfterPayment(ctx); err != nil {
		p.logger.Warn("Failed to clear payment reference", zap.Error(err))
	}
	p.cart.Reset(ctx, "")

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.completion = time.AfterFunc(p.cfg.CompletionDelay, func() {
		p.completeOnce.Do(func() { close(p.completed) })
	})
}

func (p *Poller) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fastRemaining > 0 {
		p.fastRemaining--
		return p.cfg.FastInterval
	}
	return p.cfg.Schedule(p.attempt + 1)
}

func (p *Poller) update(fn func()) {
	p.mu.Lock()
	fn()
	snap := p.snapshotLocked()
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	notify(listeners, snap)
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{
		State:              p.state,
		Reference:          p.reference,
		Attempt:            p.attempt,
		MaxAttempts:        p.cfg.MaxAttempts,
		LastObserved:       p.lastObserved,
		TransitionDetected: p.transition,
		ManualInFlight:     p.manualInFlight,
		Message:            p.message,
	}
}

func (p *Poller) snapshotListeners() []func(Snapshot) {
	listeners := make([]func(Snapshot), len(p.listeners))
	copy(listeners, p.listeners)
	return listeners
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
