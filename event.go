package hendrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"gofalre.io/hendrix/event"
	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

const (
	eventSubject = "payment.service.event.>"

	// metadataReference carries the checkout reference on payment intents
	// created by the storefront.
	metadataReference = "preference_id"
)

type EventHandler func(context.Context, *stripe.Event) error

type EventManager struct {
	natsConn *nats.Conn
	sub      *nats.Subscription
	handlers map[stripe.EventType]EventHandler
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[stripe.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType stripe.EventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType stripe.EventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

// SubscribeToEvents hands every payment event published on NATS to wp.
// Events are processed under ctx.
func (em *EventManager) SubscribeToEvents(ctx context.Context, wp *WorkerPool) error {
	if em.natsConn == nil {
		return errors.New("nats connection is not configured")
	}

	sub, err := em.natsConn.Subscribe(eventSubject, func(msg *nats.Msg) {
		var evt stripe.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}

		if !wp.Submit(ctx, &evt) {
			em.logger.Warn("Dropped event after shutdown", zap.String("event_id", evt.ID))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventSubject, err)
	}

	em.sub = sub
	return nil
}

func (em *EventManager) Unsubscribe() error {
	if em.sub == nil {
		return nil
	}
	err := em.sub.Unsubscribe()
	em.sub = nil
	return err
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[stripe.EventType]EventHandler{
		// Checkout Session Events
		stripe.EventTypeCheckoutSessionCompleted: s.paymentStatusHandler(enum.PaymentStatusApproved),
		stripe.EventTypeCheckoutSessionExpired:   s.paymentStatusHandler(enum.PaymentStatusRejected),

		// Payment Intent Events
		stripe.EventTypePaymentIntentSucceeded:     s.paymentStatusHandler(enum.PaymentStatusApproved),
		stripe.EventTypePaymentIntentPaymentFailed: s.paymentStatusHandler(enum.PaymentStatusRejected),
		stripe.EventTypePaymentIntentCanceled:      s.paymentStatusHandler(enum.PaymentStatusRejected),
		stripe.EventTypePaymentIntentProcessing:    s.paymentStatusHandler(enum.PaymentStatusInProcess),
	}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// ProcessEvent applies a payment event once. Events already marked processed
// are skipped; a failed handler leaves the event unprocessed so a redelivery
// can retry it.
func (s *service) ProcessEvent(ctx context.Context, evt *stripe.Event) error {
	// 1. 檢查是否已處理
	existing, err := s.events.GetByID(ctx, evt.ID)
	switch {
	case err == nil && existing.Processed:
		s.logger.Debug("Skipping processed event", zap.String("event_id", evt.ID))
		return nil
	case errors.Is(err, event.ErrNotFound):
		record := &models.Event{ID: evt.ID, Type: evt.Type}
		if err = s.events.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up event: %w", err)
	}

	// 2. 找到對應的處理器
	handler, ok := s.eventManager.GetHandler(evt.Type)
	if !ok {
		s.logger.Debug("No handler for event type", zap.String("event_type", string(evt.Type)))
	} else if err = handler(ctx, evt); err != nil {
		return fmt.Errorf("failed to handle %s: %w", evt.Type, err)
	}

	// 3. 標記為已處理
	if err = s.events.MarkAsProcessed(ctx, evt.ID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

func (s *service) paymentStatusHandler(status enum.PaymentStatus) EventHandler {
	return func(ctx context.Context, evt *stripe.Event) error {
		reference, err := eventReference(evt)
		if err != nil {
			s.logger.Error("Failed to read payment event", zap.String("event_id", evt.ID), zap.Error(err))
			return err
		}
		if reference == "" {
			s.logger.Warn("Payment event without reference", zap.String("event_id", evt.ID))
			return nil
		}

		s.logger.Info("Handling payment event",
			zap.String("event_id", evt.ID),
			zap.String("reference", reference),
			zap.String("status", string(status)))

		poller := s.activePoller()
		if poller == nil || poller.Reference() != reference {
			s.logger.Debug("No active payment session for reference", zap.String("reference", reference))
			return nil
		}
		poller.Observe(status)
		return nil
	}
}

// eventReference finds the checkout reference an event belongs to. Checkout
// sessions are identified by their own id unless metadata says otherwise.
func eventReference(evt *stripe.Event) (string, error) {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return "", errors.New("event has no data")
	}

	switch {
	case strings.HasPrefix(string(evt.Type), "checkout.session."):
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			return "", fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}
		if ref := session.Metadata[metadataReference]; ref != "" {
			return ref, nil
		}
		return session.ID, nil

	case strings.HasPrefix(string(evt.Type), "payment_intent."):
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &paymentIntent); err != nil {
			return "", fmt.Errorf("failed to unmarshal payment intent: %w", err)
		}
		return paymentIntent.Metadata[metadataReference], nil
	}

	return "", nil
}
