package paymentgateway

import "encoding/json"

// GatewayStatus is the hosted payment page status vocabulary.
type GatewayStatus string

const (
	StatusNew             GatewayStatus = "NEW"
	StatusFormShowed      GatewayStatus = "FORM_SHOWED"
	StatusAuthorizing     GatewayStatus = "AUTHORIZING"
	StatusAuthorized      GatewayStatus = "AUTHORIZED"
	StatusConfirming      GatewayStatus = "CONFIRMING"
	StatusConfirmed       GatewayStatus = "CONFIRMED"
	StatusCompleted       GatewayStatus = "COMPLETED"
	StatusRejected        GatewayStatus = "REJECTED"
	StatusCanceled        GatewayStatus = "CANCELED"
	StatusDeadlineExpired GatewayStatus = "DEADLINE_EXPIRED"
	StatusAuthFail        GatewayStatus = "AUTH_FAIL"
	StatusReversed        GatewayStatus = "REVERSED"
	StatusRefunded        GatewayStatus = "REFUNDED"
	StatusPartialRefunded GatewayStatus = "PARTIAL_REFUNDED"
)

type InitRequest struct {
	TerminalKey     string   `json:"TerminalKey"`
	Amount          int64    `json:"Amount"`
	OrderID         string   `json:"OrderId"`
	Description     string   `json:"Description,omitempty"`
	CustomerKey     string   `json:"CustomerKey,omitempty"`
	SuccessURL      string   `json:"SuccessURL,omitempty"`
	FailURL         string   `json:"FailURL,omitempty"`
	NotificationURL string   `json:"NotificationURL,omitempty"`
	Email           string   `json:"Email,omitempty"`
	Phone           string   `json:"Phone,omitempty"`
	Receipt         *Receipt `json:"Receipt,omitempty"`
}

// Receipt is the fiscal breakdown. At least one of Email or Phone must be set.
type Receipt struct {
	Email    string        `json:"Email,omitempty"`
	Phone    string        `json:"Phone,omitempty"`
	Taxation string        `json:"Taxation"`
	Items    []ReceiptItem `json:"Items"`
}

type ReceiptItem struct {
	Name     string      `json:"Name"`
	Price    int64       `json:"Price"`
	Quantity json.Number `json:"Quantity"`
	Amount   int64       `json:"Amount"`
	Tax      string      `json:"Tax"`
	Ean13    string      `json:"Ean13,omitempty"`
}

type GetStateRequest struct {
	TerminalKey string `json:"TerminalKey"`
	PaymentID   string `json:"PaymentId"`
}

type CancelRequest struct {
	TerminalKey string `json:"TerminalKey"`
	PaymentID   string `json:"PaymentId"`
	Amount      *int64 `json:"Amount,omitempty"`
}
