package payment

import (
	"time"

	errors "github.com/frahmantamala/storefront/internal"
	paymentmodel "github.com/frahmantamala/storefront/internal/core/datamodel/payment"
	"github.com/frahmantamala/storefront/internal/order"
)

// CheckoutRequest is the Mini-App basket submitted for payment.
type CheckoutRequest struct {
	order.CreateOrderDTO
}

type CheckoutResult struct {
	OrderID          int64  `json:"order_id"`
	PaymentID        int64  `json:"payment_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	OrderReference   string `json:"order_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	RedirectURL      string `json:"redirect_url"`
}

type CancelRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

func (r *CancelRequest) Validate() error {
	if r.Amount != nil && *r.Amount <= 0 {
		return errors.NewValidationFieldError("amount", "amount must be positive", errors.ErrCodeInvalidAmount)
	}
	return nil
}

type CancelResult struct {
	PaymentID     int64  `json:"payment_id"`
	GatewayStatus string `json:"gateway_status"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome"`
	NewAmount     int64  `json:"new_amount"`
}

type StatusEventResponse struct {
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type StatusResponse struct {
	ID               int64                 `json:"id"`
	OrderID          int64                 `json:"order_id"`
	OrderReference   string                `json:"order_reference"`
	Gateway          string                `json:"gateway"`
	GatewayPaymentID string                `json:"gateway_payment_id,omitempty"`
	Amount           int64                 `json:"amount"`
	Currency         string                `json:"currency"`
	Status           string                `json:"status"`
	RedirectURL      string                `json:"redirect_url,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	Events           []StatusEventResponse `json:"events"`
}

type OrderPaymentsResponse struct {
	Payments []StatusResponse `json:"payments"`
}

// PublicStatusResponse is what the buyer sees. It carries no gateway ids
// and no audit messages.
type PublicStatusResponse struct {
	OrderID        int64                 `json:"order_id"`
	OrderReference string                `json:"order_reference"`
	Amount         int64                 `json:"amount"`
	Currency       string                `json:"currency"`
	Status         string                `json:"status"`
	RedirectURL    string                `json:"redirect_url,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	Events         []StatusEventResponse `json:"events"`
}

type RefreshResponse struct {
	OrderReference string `json:"order_reference"`
	Outcome        string `json:"outcome"`
	Status         string `json:"status"`
}

func toStatusResponse(rec *paymentmodel.PaymentRecord, events []paymentmodel.PaymentStatusEvent) StatusResponse {
	resp := StatusResponse{
		ID:             rec.ID,
		OrderID:        rec.OrderID,
		OrderReference: rec.OrderReference,
		Gateway:        rec.GatewayName,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Status:         rec.Status,
		RedirectURL:    rec.RedirectURL,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		CompletedAt:    rec.CompletedAt,
		Events:         make([]StatusEventResponse, 0, len(events)),
	}
	if rec.GatewayPaymentID != nil {
		resp.GatewayPaymentID = *rec.GatewayPaymentID
	}
	for _, e := range events {
		item := StatusEventResponse{Status: e.Status, OccurredAt: e.OccurredAt}
		if e.Message != nil {
			item.Message = *e.Message
		}
		resp.Events = append(resp.Events, item)
	}
	return resp
}

func toPublicStatusResponse(rec *paymentmodel.PaymentRecord, events []paymentmodel.PaymentStatusEvent) PublicStatusResponse {
	resp := PublicStatusResponse{
		OrderID:        rec.OrderID,
		OrderReference: rec.OrderReference,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Status:         rec.Status,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		CompletedAt:    rec.CompletedAt,
		Events:         make([]StatusEventResponse, 0, len(events)),
	}
	// the hosted page is only useful while the buyer can still pay
	if !Status(rec.Status).IsFinal() && Status(rec.Status) != StatusCompleted {
		resp.RedirectURL = rec.RedirectURL
	}
	for _, e := range events {
		resp.Events = append(resp.Events, StatusEventResponse{Status: e.Status, OccurredAt: e.OccurredAt})
	}
	return resp
}
