package auth

import (
	"net/http"

	"github.com/frahmantamala/storefront/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service AuthService
}

func NewHandler(baseHandler *transport.BaseHandler, svc AuthService) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

// Login handles POST /api/v1/admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("admin authentication failed", "error", err, "remote_addr", r.RemoteAddr)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}
