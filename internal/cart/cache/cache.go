// Package cache is the read-through layer in front of the cart
// repository. A miss is the ordinary case for a fresh cart, not a fault.
package cache

import (
	"context"
	"errors"

	"meatline/internal/domain"
)

// ErrCacheMiss signals the caller should fall through to the repository.
var ErrCacheMiss = errors.New("cache miss")

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}
