package order

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/core/common/validation"
)

const (
	maxLines    = 50
	maxQuantity = 99
)

type ItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CustomerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateOrderDTO struct {
	TelegramUserID *int64      `json:"telegram_user_id,omitempty"`
	Customer       CustomerDTO `json:"customer"`
	Comment        string      `json:"comment"`
	Items          []ItemDTO   `json:"items"`
}

func (d *CreateOrderDTO) Validate() error {
	if len(d.Items) == 0 {
		return errors.NewValidationFieldError("items", "order has no items", errors.ErrCodeEmptyItems)
	}

	validator := validation.NewValidator()
	validator.Field("items", len(d.Items)).MaxInt(maxLines, errors.ErrCodeValidationFailed)
	validator.Field("customer.name", d.Customer.Name).MaxLength(200)
	validator.Field("comment", d.Comment).MaxLength(1000)
	for i, item := range d.Items {
		validator.Field(fmt.Sprintf("items[%d].product_id", i), item.ProductID).MinInt(1, errors.ErrCodeProductNotFound)
		validator.Field(fmt.Sprintf("items[%d].quantity", i), item.Quantity).
			MinInt(1, errors.ErrCodeInvalidQuantity).
			MaxInt(maxQuantity, errors.ErrCodeInvalidQuantity)
	}
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}

	if appErr := validation.ValidateContact(d.Customer.Email, d.Customer.Phone); appErr != nil {
		return appErr
	}
	return nil
}

type OrderResponse struct {
	ID             int64      `json:"id"`
	TelegramUserID *int64     `json:"telegram_user_id,omitempty"`
	CustomerName   string     `json:"customer_name"`
	CustomerEmail  string     `json:"customer_email,omitempty"`
	CustomerPhone  string     `json:"customer_phone,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	Items          []Line     `json:"items"`
	TotalAmount    int64      `json:"total_amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
