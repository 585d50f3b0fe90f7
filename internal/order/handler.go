package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/storefront/internal/transport"
)

type ServiceAPI interface {
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListOrders handles GET /api/v1/admin/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: q.Get("status")}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	orders, err := h.Service.ListOrders(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp := OrdersResponse{
		Orders: make([]OrderResponse, 0, len(orders)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, o.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /api/v1/admin/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.PathID(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o.ToResponse())
}
