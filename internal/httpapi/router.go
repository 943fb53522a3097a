// Package httpapi exposes the storefront surface over JSON REST: catalog
// reads, cart mutations, price quotes, checkout, order history and the
// account endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"meatline/internal/auth"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	LoginRPS       rate.Limit
	LoginBurst     int
}

type Handlers struct {
	Cart     *CartHandler
	Catalog  *CatalogHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Auth     *AuthHandler
	Profile  *ProfileHandler
}

// NewRouter assembles the full route tree. Catalog reads and the signup
// and login endpoints are public, everything else requires a valid token.
func NewRouter(cfg RouterConfig, verifier *auth.Service, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.Catalog.ListProducts)
			r.Get("/style/{style}", h.Catalog.ListProductsByStyle)
			r.Get("/{id}", h.Catalog.GetProduct)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(RateLimit(cfg.LoginRPS, cfg.LoginBurst)).Post("/login", h.Auth.Login)
			r.Post("/signup", h.Auth.Signup)
			r.With(RateLimit(cfg.LoginRPS, cfg.LoginBurst)).Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/reset-password", h.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(Authenticate(verifier))
				r.Get("/{id}", h.Profile.GetUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(verifier))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Post("/quote", h.Cart.Quote)
				r.Group(func(r chi.Router) {
					r.Use(RequireConsent)
					r.Post("/items", h.Cart.AddItem)
					r.Post("/items/{product_id}/subtract", h.Cart.SubtractItem)
					r.Delete("/items/{product_id}", h.Cart.RemoveItem)
					r.Delete("/", h.Cart.ClearCart)
				})
			})

			r.Post("/checkout", h.Checkout.InitiateCheckout)
			r.Get("/orders/user/{userId}", h.Orders.ListOrders)
			r.Get("/addresses/user/{userId}", h.Profile.ListAddresses)
			r.Get("/points/user/{userId}", h.Profile.ListPoints)
			r.Get("/points/user/{userId}/total", h.Profile.GetPointsTotal)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/signup-requests", h.Auth.ListSignupRequests)
				r.Post("/signup-requests/{id}/approve", h.Auth.ApproveSignup)
				r.Post("/signup-requests/{id}/reject", h.Auth.RejectSignup)
			})
		})
	})

	return r
}
