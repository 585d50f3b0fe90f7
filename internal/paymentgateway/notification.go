package paymentgateway

import (
	"github.com/frahmantamala/storefront/internal"
	gatewaytypes "github.com/frahmantamala/storefront/internal/core/datamodel/paymentgateway"
)

// Notification is a verified webhook delivery.
type Notification struct {
	TerminalKey string
	OrderID     string
	PaymentID   string
	Status      gatewaytypes.GatewayStatus
	Success     bool
	ErrorCode   string
	Amount      int64
	HasAmount   bool
	Raw         Fields
}

// VerifyNotification checks the signature of a decoded webhook body before
// anything in it is trusted.
func (c *Client) VerifyNotification(raw Fields) (*Notification, error) {
	if _, ok := raw[TokenField].(string); !ok {
		return nil, internal.NewSignatureInvalidError("notification is not signed", internal.ErrCodeSignatureMissing)
	}
	if !c.signer.Verify(raw) {
		return nil, internal.NewSignatureInvalidError("notification signature mismatch", internal.ErrCodeSignatureMismatch)
	}

	n := &Notification{
		TerminalKey: raw.String("TerminalKey"),
		OrderID:     raw.String("OrderId"),
		PaymentID:   raw.String("PaymentId"),
		Status:      gatewaytypes.GatewayStatus(raw.String("Status")),
		Success:     raw.Bool("Success"),
		ErrorCode:   raw.String("ErrorCode"),
		Raw:         raw,
	}
	n.Amount, n.HasAmount = raw.Int64("Amount")

	if n.PaymentID == "" || n.Status == "" {
		return nil, internal.NewValidationError("notification lacks PaymentId or Status", internal.ErrCodeValidationFailed)
	}
	if n.TerminalKey != "" && n.TerminalKey != c.cfg.TerminalKey {
		return nil, internal.NewSignatureInvalidError("notification addressed to another terminal", internal.ErrCodeSignatureMismatch)
	}

	return n, nil
}
