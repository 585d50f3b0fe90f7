package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/order"
)

// OrderReader is satisfied by *order.Service.
type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
}

// Notifier is satisfied by *notify.Telegram.
type Notifier interface {
	OrderCreated(ctx context.Context, o *order.Order) error
	PaymentStatusChanged(ctx context.Context, o *order.Order, e *events.PaymentStatusChangedEvent) error
}

// EventHandler relays checkout events to the operator. Delivery failures are
// logged and never fail the event.
type EventHandler struct {
	orders   OrderReader
	notifier Notifier
	logger   *slog.Logger
}

func NewEventHandler(orders OrderReader, notifier Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		orders:   orders,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandleOrderCreated(ctx context.Context, event events.Event) error {
	orderEvent, ok := event.(*events.OrderCreatedEvent)
	if !ok {
		h.logger.Error("invalid event type for order created handler", "event_type", event.EventType())
		return fmt.Errorf("expected OrderCreatedEvent, got %T", event)
	}

	o, err := h.orders.GetOrder(ctx, orderEvent.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderEvent.OrderID, err)
	}

	if err := h.notifier.OrderCreated(ctx, o); err != nil {
		h.logger.Warn("failed to notify about new order",
			"error", err,
			"order_id", o.ID,
			"event_id", orderEvent.EventID())
		return nil
	}

	h.logger.Info("operator notified about new order", "order_id", o.ID, "event_id", orderEvent.EventID())
	return nil
}

func (h *EventHandler) HandlePaymentStatusChanged(ctx context.Context, event events.Event) error {
	paymentEvent, ok := event.(*events.PaymentStatusChangedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment status handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentStatusChangedEvent, got %T", event)
	}

	o, err := h.orders.GetOrder(ctx, paymentEvent.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", paymentEvent.OrderID, err)
	}

	if err := h.notifier.PaymentStatusChanged(ctx, o, paymentEvent); err != nil {
		h.logger.Warn("failed to notify about payment status",
			"error", err,
			"order_id", o.ID,
			"payment_id", paymentEvent.PaymentID,
			"to_status", paymentEvent.ToStatus)
		return nil
	}

	h.logger.Info("operator notified about payment status",
		"order_id", o.ID,
		"payment_id", paymentEvent.PaymentID,
		"to_status", paymentEvent.ToStatus)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeOrderCreated, h.HandleOrderCreated)
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentStatusChanged)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentStatusChanged)
	eventBus.Subscribe(events.EventTypePaymentRefunded, h.HandlePaymentStatusChanged)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypeOrderCreated,
			events.EventTypePaymentCompleted,
			events.EventTypePaymentFailed,
			events.EventTypePaymentRefunded,
		})
}
