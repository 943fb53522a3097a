package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meatline/internal/domain"
	"meatline/internal/orderfeed"
)

type OrdersHandler struct {
	orders  orderfeed.OrderRepository
	timeout time.Duration
}

func NewOrdersHandler(orders orderfeed.OrderRepository, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// GET /api/orders/user/{userId}
//
// The feed is filled asynchronously from completed checkout events, so an
// order can trail its checkout by a poll interval.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	callerID := getUserIDFromContext(r.Context())
	if callerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	userID := chi.URLParam(r, "userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "userId is required")
		return
	}
	if userID != callerID && !getIsAdminFromContext(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", "cannot read another user's orders")
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load orders")
		return
	}

	respondJSON(w, http.StatusOK, &OrdersResponse{Orders: orders})
}
