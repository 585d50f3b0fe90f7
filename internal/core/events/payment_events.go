package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOrderCreated     = "order.created"
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentRefunded  = "payment.refunded"
)

type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

func NewOrderCreatedEvent(orderID, totalAmount int64, currency string) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeOrderCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":     orderID,
				"total_amount": totalAmount,
				"currency":     currency,
			},
		},
		OrderID:     orderID,
		TotalAmount: totalAmount,
		Currency:    currency,
	}
}

// PaymentStatusChangedEvent is published after a terminal transition commits.
type PaymentStatusChangedEvent struct {
	BaseEvent
	PaymentID        int64  `json:"payment_id"`
	OrderID          int64  `json:"order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	FromStatus       string `json:"from_status"`
	ToStatus         string `json:"to_status"`
	Message          string `json:"message,omitempty"`
}

func NewPaymentStatusChangedEvent(eventType string, paymentID, orderID int64, gatewayPaymentID string, amount int64, currency, from, to, message string) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":         paymentID,
				"order_id":           orderID,
				"gateway_payment_id": gatewayPaymentID,
				"amount":             amount,
				"currency":           currency,
				"from_status":        from,
				"to_status":          to,
				"message":            message,
			},
		},
		PaymentID:        paymentID,
		OrderID:          orderID,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           amount,
		Currency:         currency,
		FromStatus:       from,
		ToStatus:         to,
		Message:          message,
	}
}
