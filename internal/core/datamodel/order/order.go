package order

import (
	"time"

	"gorm.io/datatypes"
)

type Order struct {
	ID             int64          `gorm:"primaryKey"`
	TelegramUserID *int64         `gorm:"column:telegram_user_id;index"`
	CustomerName   string         `gorm:"column:customer_name"`
	CustomerEmail  string         `gorm:"column:customer_email"`
	CustomerPhone  string         `gorm:"column:customer_phone"`
	Comment        string         `gorm:"column:comment"`
	Items          datatypes.JSON `gorm:"column:items;not null"`
	TotalAmount    int64          `gorm:"column:total_amount;not null"`
	Currency       string         `gorm:"column:currency;not null"`
	Status         string         `gorm:"column:status;not null;default:pending;index"`
	ConfirmedAt    *time.Time     `gorm:"column:confirmed_at"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusPaymentFailed = "payment_failed"
	StatusRefunded      = "refunded"
	StatusCancelled     = "cancelled"
)
