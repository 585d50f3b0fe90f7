package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/paymentgateway"
	"github.com/frahmantamala/storefront/internal/transport"
)

const maxNotificationBytes = 64 << 10

// NotificationHandler is satisfied by *Reconciler.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, raw paymentgateway.Fields) (Result, error)
}

type WebhookHandler struct {
	*transport.BaseHandler
	reconciler NotificationHandler
	logger     *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, reconciler NotificationHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// HandleNotification handles POST /api/v1/payment/webhook. The gateway keeps
// redelivering until it sees a 200 with the body "OK", so every structurally
// valid notification is acknowledged, including ignored ones.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes+1))
	if err != nil {
		h.logger.Error("failed to read notification body", "error", err)
		h.WriteText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if len(body) > maxNotificationBytes {
		h.logger.Warn("notification body too large", "bytes", len(body))
		h.WriteText(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large")
		return
	}

	raw, err := paymentgateway.DecodeFields(body)
	if err != nil {
		h.logger.Warn("invalid notification body", "error", err)
		h.WriteText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	res, err := h.reconciler.HandleNotification(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, internal.ErrSignatureInvalid):
			h.WriteText(w, http.StatusForbidden, "Forbidden")
		case errors.Is(err, internal.ErrValidation):
			h.WriteText(w, http.StatusBadRequest, "Bad Request")
		default:
			h.logger.Error("failed to process notification", "error", err)
			h.WriteText(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	h.logger.Info("notification processed",
		"outcome", res.Outcome,
		"record_id", res.RecordID,
		"from", res.From,
		"to", res.To)

	h.WriteText(w, http.StatusOK, "OK")
}
