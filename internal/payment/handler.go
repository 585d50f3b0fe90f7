package payment

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/transport"
)

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int64  `db:"count" json:"count"`
	Amount int64  `db:"amount" json:"amount"`
}

// StatsReader backs the admin dashboard.
type StatsReader interface {
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	OrdersByStatus(ctx context.Context) (map[string]int64, error)
}

type StatsResponse struct {
	Payments []StatusCount    `json:"payments"`
	Orders   map[string]int64 `json:"orders"`
}

type Handler struct {
	*transport.BaseHandler
	PaymentService ServiceAPI
	Stats          StatsReader
	Logger         *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, paymentService ServiceAPI, stats StatsReader, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    baseHandler,
		PaymentService: paymentService,
		Stats:          stats,
		Logger:         logger,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.Logger.Error("Checkout: failed to parse request body")
		h.HandleError(w, appErr)
		return
	}

	result, err := h.PaymentService.Checkout(r.Context(), req)
	if err != nil {
		h.Logger.Error("Checkout: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) pathReference(r *http.Request) (string, *internal.AppError) {
	ref := chi.URLParam(r, "reference")
	if !ValidOrderReference(ref) {
		return "", internal.NewValidationFieldError("reference", "invalid reference", internal.ErrCodeValidationFailed)
	}
	return ref, nil
}

// GetStatus handles GET /api/v1/payments/{reference}
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ref, appErr := h.pathReference(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	status, err := h.PaymentService.PublicStatus(r.Context(), ref)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// Refresh handles POST /api/v1/payments/{reference}/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ref, appErr := h.pathReference(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	res, err := h.PaymentService.RefreshByReference(r.Context(), ref)
	if err != nil {
		h.Logger.Error("Refresh: service error", "error", err, "order_reference", ref)
		h.HandleServiceError(w, err)
		return
	}

	status := res.To
	if res.Outcome != OutcomeApplied {
		status = res.From
	}
	h.WriteJSON(w, http.StatusOK, RefreshResponse{
		OrderReference: ref,
		Outcome:        string(res.Outcome),
		Status:         string(status),
	})
}

// GetPayment handles GET /api/v1/admin/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	status, err := h.PaymentService.PaymentStatus(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// GetOrderPayments handles GET /api/v1/admin/orders/{id}/payments
func (h *Handler) GetOrderPayments(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	payments, err := h.PaymentService.OrderPayments(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, OrderPaymentsResponse{Payments: payments})
}

// Cancel handles POST /api/v1/admin/payments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req CancelRequest
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &req); appErr != nil {
			h.HandleError(w, appErr)
			return
		}
	}
	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.PaymentService.Cancel(r.Context(), id, req.Amount)
	if err != nil {
		h.Logger.Error("Cancel: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Cancel: payment cancelled", "payment_id", id, "status", result.Status)
	h.WriteJSON(w, http.StatusOK, result)
}

// GetStats handles GET /api/v1/admin/payments/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Stats.CountByStatus(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	orders, err := h.Stats.OrdersByStatus(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, StatsResponse{Payments: payments, Orders: orders})
}
