package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meatline/internal/catalog"
	"meatline/internal/domain"
)

// CatalogSource is the read side of the product catalog.
type CatalogSource interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProductsByStyle(ctx context.Context, style string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CatalogHandler struct {
	catalog CatalogSource
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogSource, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// GET /api/items
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.GetAllProducts(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load products")
		return
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/items/style/{style}
func (h *CatalogHandler) ListProductsByStyle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	style := chi.URLParam(r, "style")
	if !domain.ValidStyle(style) {
		respondError(w, http.StatusBadRequest, "invalid_style", "style must be marinated, processed or unprocessed")
		return
	}

	products, err := h.catalog.GetProductsByStyle(ctx, style)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load products")
		return
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/items/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	respondJSON(w, http.StatusOK, product)
}
