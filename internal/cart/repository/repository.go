package repository

import (
	"context"

	"meatline/internal/domain"
)

// CartRepository is the storage surface the cart service builds on.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID string, product domain.Product) error
	DecrementLine(ctx context.Context, userID string, productID int64) error
	RemoveLine(ctx context.Context, userID string, productID int64) error
	RemoveLines(ctx context.Context, userID string, productIDs []int64) error
	DeleteCart(ctx context.Context, userID string) error
}
