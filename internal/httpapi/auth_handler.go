package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meatline/internal/auth"
	"meatline/internal/profile"
)

type AuthHandler struct {
	auth    *auth.Service
	timeout time.Duration
}

func NewAuthHandler(auth *auth.Service, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		timeout: timeout,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequestDTO struct {
	Email string `json:"email"`
}

type ResetPasswordRequestDTO struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// POST /api/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	result, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			respondError(w, http.StatusUnauthorized, "bad_credentials", "invalid email or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// POST /api/users/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req auth.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	request, err := h.auth.Signup(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid_email", "invalid email format")
		case errors.Is(err, auth.ErrInvalidLicense):
			respondError(w, http.StatusBadRequest, "invalid_license", "license number must look like CA-123456")
		case errors.Is(err, auth.ErrPasswordTooShort):
			respondError(w, http.StatusBadRequest, "password_too_short", "password must be at least 8 characters")
		case errors.Is(err, profile.ErrDuplicateEmail):
			respondError(w, http.StatusConflict, "email_taken", "email already registered")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "signup failed")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, request)
}

// POST /api/users/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ForgotPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "missing_email", "email is required")
		return
	}

	// Always 202, whether or not the account exists.
	if err := h.auth.ForgotPassword(ctx, req.Email); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not process request")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// POST /api/users/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResetPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}

	if err := h.auth.ResetPassword(ctx, req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort):
			respondError(w, http.StatusBadRequest, "password_too_short", "password must be at least 8 characters")
		case errors.Is(err, profile.ErrResetTokenNotFound):
			respondError(w, http.StatusGone, "token_expired", "reset token not found or expired")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "could not reset password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// GET /api/admin/signup-requests
func (h *AuthHandler) ListSignupRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	requests, err := h.auth.ListSignupRequests(ctx, r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load signup requests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// POST /api/admin/signup-requests/{id}/approve
func (h *AuthHandler) ApproveSignup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	user, err := h.auth.ApproveSignup(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrSignupRequestNotFound):
			respondError(w, http.StatusNotFound, "not_found", "signup request not found")
		case errors.Is(err, profile.ErrSignupRequestNotPending):
			respondError(w, http.StatusConflict, "already_decided", "signup request is not pending")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "could not approve signup")
		}
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// POST /api/admin/signup-requests/{id}/reject
func (h *AuthHandler) RejectSignup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.auth.RejectSignup(ctx, id); err != nil {
		switch {
		case errors.Is(err, profile.ErrSignupRequestNotFound):
			respondError(w, http.StatusNotFound, "not_found", "signup request not found")
		case errors.Is(err, profile.ErrSignupRequestNotPending):
			respondError(w, http.StatusConflict, "already_decided", "signup request is not pending")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "could not reject signup")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
