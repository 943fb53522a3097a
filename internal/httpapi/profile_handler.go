package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"meatline/internal/profile"
)

type ProfileHandler struct {
	profiles *profile.Repository
	timeout  time.Duration
}

func NewProfileHandler(profiles *profile.Repository, timeout time.Duration) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		timeout:  timeout,
	}
}

type PointsTotalResponse struct {
	UserID string          `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
}

// GET /api/users/{id}
func (h *ProfileHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if !h.authorizeOwner(w, r, id) {
		return
	}

	user, err := h.profiles.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, profile.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// GET /api/addresses/user/{userId}
func (h *ProfileHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := chi.URLParam(r, "userId")
	if !h.authorizeOwner(w, r, userID) {
		return
	}

	addresses, err := h.profiles.ListAddressesByUserID(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load addresses")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"addresses": addresses})
}

// GET /api/points/user/{userId}
func (h *ProfileHandler) ListPoints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := chi.URLParam(r, "userId")
	if !h.authorizeOwner(w, r, userID) {
		return
	}

	points, err := h.profiles.ListPointsByUserID(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load points")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"points": points})
}

// GET /api/points/user/{userId}/total
func (h *ProfileHandler) GetPointsTotal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := chi.URLParam(r, "userId")
	if !h.authorizeOwner(w, r, userID) {
		return
	}

	total, err := h.profiles.GetTotalPoints(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load points total")
		return
	}

	respondJSON(w, http.StatusOK, PointsTotalResponse{UserID: userID, Total: total})
}

// authorizeOwner allows the user themselves or an admin.
func (h *ProfileHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, userID string) bool {
	callerID := getUserIDFromContext(r.Context())
	if callerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return false
	}
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "userId is required")
		return false
	}
	if userID != callerID && !getIsAdminFromContext(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", "cannot read another user's data")
		return false
	}
	return true
}
