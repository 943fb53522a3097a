package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meatline/internal/catalog"
	"meatline/internal/domain"
	"meatline/internal/pricing"
)

// CartBackend is the slice of the cart service the handlers call.
type CartBackend interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddProduct(ctx context.Context, userID string, product domain.Product) error
	Subtract(ctx context.Context, userID string, productID int64) error
	Remove(ctx context.Context, userID string, productID int64) error
	Clear(ctx context.Context, userID string) error
}

// ProductSource resolves a product id to its catalog entry.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartHandler struct {
	carts   CartBackend
	catalog ProductSource
	timeout time.Duration
}

func NewCartHandler(carts CartBackend, catalog ProductSource, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type QuoteRequestDTO struct {
	OrderType string `json:"order_type"`
}

type QuoteResponseDTO struct {
	Items []domain.CartLine `json:"items"`
	Quote pricing.Quote     `json:"quote"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	if err := h.carts.AddProduct(ctx, userID, *product); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add item")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusCreated, cart)
}

// POST /api/cart/items/{product_id}/subtract
func (h *CartHandler) SubtractItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.carts.Subtract(ctx, userID, productID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update item")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.carts.Remove(ctx, userID, productID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove item")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.Clear(ctx, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// POST /api/cart/quote
func (h *CartHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req QuoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	fulfillment := domain.Fulfillment(req.OrderType)
	if !fulfillment.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_order_type", "order_type must be pickup, express_pickup or delivery")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	q := pricing.Compute(cart.Items, fulfillment).Round()
	respondJSON(w, http.StatusOK, QuoteResponseDTO{
		Items: cart.Items,
		Quote: q,
	})
}

func productIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
