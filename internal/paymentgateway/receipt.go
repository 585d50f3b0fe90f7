package paymentgateway

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
)

const (
	DefaultTaxation = "usn_income"
	DefaultTax      = "none"
)

type Customer struct {
	ID    string
	Email string
	Phone string
}

// HasContact reports whether a receipt can be delivered to the customer.
func (c Customer) HasContact() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}

type LineItem struct {
	Name      string
	UnitPrice int64
	Quantity  decimal.Decimal
	// Amount is what the caller believes the line costs. It is ignored.
	Amount int64
	Tax    string
	SKU    string
}

// LineAmount is round(UnitPrice * Quantity) in minor units.
func (l LineItem) LineAmount() int64 {
	return decimal.NewFromInt(l.UnitPrice).Mul(l.Quantity).Round(0).IntPart()
}

// BuildReceipt returns nil when the customer has neither email nor phone.
func BuildReceipt(customer Customer, items []LineItem, taxation, defaultTax string) *gatewaytypes.Receipt {
	if !customer.HasContact() {
		return nil
	}
	if taxation == "" {
		taxation = DefaultTaxation
	}
	if defaultTax == "" {
		defaultTax = DefaultTax
	}

	receipt := &gatewaytypes.Receipt{
		Email:    strings.TrimSpace(customer.Email),
		Phone:    strings.TrimSpace(customer.Phone),
		Taxation: taxation,
		Items:    make([]gatewaytypes.ReceiptItem, 0, len(items)),
	}

	for _, item := range items {
		tax := item.Tax
		if tax == "" {
			tax = defaultTax
		}
		receipt.Items = append(receipt.Items, gatewaytypes.ReceiptItem{
			Name:     item.Name,
			Price:    item.UnitPrice,
			Quantity: json.Number(item.Quantity.String()),
			Amount:   item.LineAmount(),
			Tax:      tax,
			Ean13:    item.SKU,
		})
	}

	return receipt
}
