package payment

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentRecord is the local view of one gateway payment attempt.
// CompletedAt is set if and only if Status is "completed".
type PaymentRecord struct {
	ID               int64          `gorm:"primaryKey"`
	OrderID          int64          `gorm:"column:order_id;not null;index"`
	OrderReference   string         `gorm:"column:order_reference;not null;uniqueIndex"`
	GatewayName      string         `gorm:"column:gateway_name;not null;uniqueIndex:idx_payments_gateway_payment"`
	GatewayPaymentID *string        `gorm:"column:gateway_payment_id;uniqueIndex:idx_payments_gateway_payment"`
	Amount           int64          `gorm:"column:amount;not null"`
	Currency         string         `gorm:"column:currency;not null"`
	Status           string         `gorm:"column:status;not null;default:pending;index"`
	PayerContact     string         `gorm:"column:payer_contact"`
	RedirectURL      string         `gorm:"column:redirect_url"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
	CompletedAt      *time.Time     `gorm:"column:completed_at"`
}

func (PaymentRecord) TableName() string {
	return "payments"
}

// PaymentStatusEvent is append-only.
type PaymentStatusEvent struct {
	ID         int64     `gorm:"primaryKey"`
	PaymentID  int64     `gorm:"column:payment_id;not null;index"`
	Status     string    `gorm:"column:status;not null"`
	Message    *string   `gorm:"column:message"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
}

func (PaymentStatusEvent) TableName() string {
	return "payment_status_events"
}
