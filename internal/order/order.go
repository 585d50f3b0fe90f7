package order

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	orderDatamodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
)

// Line is one priced position of an order. Amounts are in minor units.
type Line struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Amount    int64  `json:"amount"`
}

type Customer struct {
	TelegramUserID *int64
	Name           string
	Email          string
	Phone          string
}

type Order struct {
	ID          int64
	Customer    Customer
	Comment     string
	Lines       []Line
	TotalAmount int64
	Currency    string
	Status      string
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (o *Order) IsPending() bool {
	return o.Status == orderDatamodel.StatusPending
}

func (o *Order) ToResponse() OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		TelegramUserID: o.Customer.TelegramUserID,
		CustomerName:   o.Customer.Name,
		CustomerEmail:  o.Customer.Email,
		CustomerPhone:  o.Customer.Phone,
		Comment:        o.Comment,
		Items:          o.Lines,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Status:         o.Status,
		ConfirmedAt:    o.ConfirmedAt,
		CreatedAt:      o.CreatedAt,
	}
}

func ToDataModel(o *Order) (*orderDatamodel.Order, error) {
	items, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode order items: %w", err)
	}
	return &orderDatamodel.Order{
		ID:             o.ID,
		TelegramUserID: o.Customer.TelegramUserID,
		CustomerName:   o.Customer.Name,
		CustomerEmail:  o.Customer.Email,
		CustomerPhone:  o.Customer.Phone,
		Comment:        o.Comment,
		Items:          datatypes.JSON(items),
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Status:         o.Status,
		ConfirmedAt:    o.ConfirmedAt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

func FromDataModel(o *orderDatamodel.Order) (*Order, error) {
	var lines []Line
	if len(o.Items) > 0 {
		if err := json.Unmarshal(o.Items, &lines); err != nil {
			return nil, fmt.Errorf("decode items of order %d: %w", o.ID, err)
		}
	}
	return &Order{
		ID: o.ID,
		Customer: Customer{
			TelegramUserID: o.TelegramUserID,
			Name:           o.CustomerName,
			Email:          o.CustomerEmail,
			Phone:          o.CustomerPhone,
		},
		Comment:     o.Comment,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Status:      o.Status,
		ConfirmedAt: o.ConfirmedAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}, nil
}
