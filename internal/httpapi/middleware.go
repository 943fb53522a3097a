package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"meatline/internal/auth"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	isAdminKey   contextKey = "is_admin"
	requestIDKey contextKey = "request_id"
)

const consentCookie = "cookieAgreement"

// Authenticate validates the bearer token and stores the caller identity
// in the request context. Requests without a valid token are rejected.
func Authenticate(verifier *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := verifier.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, isAdminKey, claims.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin routes. It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !getIsAdminFromContext(r.Context()) {
			respondError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireConsent rejects cart mutations until the wholesale terms cookie
// has been accepted.
func RequireConsent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(consentCookie)
		if err != nil || c.Value != "accepted" {
			respondError(w, http.StatusForbidden, "consent_required", "wholesale terms must be accepted before modifying the cart")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit bounds request throughput on credential endpoints.
func RateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

func getIsAdminFromContext(ctx context.Context) bool {
	if isAdmin, ok := ctx.Value(isAdminKey).(bool); ok {
		return isAdmin
	}
	return false
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
