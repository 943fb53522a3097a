package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"meatline/internal/checkout/service"
	"meatline/internal/domain"
)

type CheckoutHandler struct {
	checkout service.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout service.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type InitiateCheckoutRequestDTO struct {
	OrderType      string `json:"order_type"`
	IdempotencyKey string `json:"idempotency_key"`
	AgreedTerms    bool   `json:"agreed_terms"`
	AgreedRefund   bool   `json:"agreed_refund"`
	AgreedPrivacy  bool   `json:"agreed_privacy"`
}

type CheckoutResponseDTO struct {
	CheckoutID  string               `json:"checkout_id"`
	Status      string               `json:"status"`
	OrderID     int64                `json:"order_id,omitempty"`
	OrderNumber string               `json:"order_number,omitempty"`
	OrderDate   string               `json:"order_date,omitempty"`
	FailedItems []int64              `json:"failed_items,omitempty"`
	Snapshot    *domain.CartSnapshot `json:"snapshot,omitempty"`
}

// POST /api/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.IdempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key",
			"idempotency_key is required")
		return
	}

	resp, err := h.checkout.InitiateCheckout(ctx, &service.CheckoutRequest{
		UserID:         userID,
		OrderType:      domain.Fulfillment(req.OrderType),
		IdempotencyKey: req.IdempotencyKey,
		AgreedTerms:    req.AgreedTerms,
		AgreedRefund:   req.AgreedRefund,
		AgreedPrivacy:  req.AgreedPrivacy,
	})
	if err != nil {
		var partial *service.PartialFailureError
		switch {
		case errors.As(err, &partial):
			// The order header landed upstream, so the caller gets the
			// session state plus the lines that did not make it.
			respondJSON(w, http.StatusMultiStatus, convertCheckoutResponse(resp))
		case errors.Is(err, service.ErrEmptyCart):
			respondError(w, http.StatusConflict, "empty_cart", "cart is empty, nothing to checkout")
		case errors.Is(err, service.ErrAgreementsNotChecked):
			respondError(w, http.StatusBadRequest, "agreements_required", "all checkout agreements must be accepted")
		case errors.Is(err, service.ErrInvalidFulfillment):
			respondError(w, http.StatusBadRequest, "invalid_order_type", "order_type must be pickup, express_pickup or delivery")
		case errors.Is(err, service.ErrNotAuthenticated):
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		default:
			log.Printf("checkout failed request_id = %v user_id = %v: %v", getRequestID(r.Context()), userID, err)
			respondError(w, http.StatusBadGateway, "order_submission_failed", "order could not be submitted")
		}
		return
	}

	respondJSON(w, http.StatusCreated, convertCheckoutResponse(resp))
}

func convertCheckoutResponse(resp *service.CheckoutResponse) CheckoutResponseDTO {
	dto := CheckoutResponseDTO{
		CheckoutID:  resp.CheckoutID,
		Status:      string(resp.Status),
		OrderID:     resp.OrderID,
		OrderNumber: resp.OrderNumber,
		FailedItems: resp.FailedItems,
		Snapshot:    resp.Snapshot,
	}
	if !resp.OrderDate.IsZero() {
		dto.OrderDate = resp.OrderDate.Format(time.RFC3339)
	}
	return dto
}
