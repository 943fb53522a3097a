package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"meatline/internal/cart/cache"
	"meatline/internal/cart/repository"
	"meatline/internal/domain"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
	}
}

// GetCart never fails for a user without a stored cart; that case reads as
// an empty cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil // cart was not in cache, return it from repo
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddProduct puts one unit of the product in the cart: a new line at
// quantity 1, or plus one on the line that is already there.
func (s *CartService) AddProduct(ctx context.Context, userID string, product domain.Product) error {
	errAdd := s.repo.AddLine(ctx, userID, product)
	if errAdd != nil {
		log.Printf("repo add line error: %v", errAdd)
		return errAdd
	}

	s.invalidateCache(userID)
	return nil
}

// Subtract takes one unit off a line; the line disappears at zero. Missing
// lines are ignored.
func (s *CartService) Subtract(ctx context.Context, userID string, productID int64) error {
	errDec := s.repo.DecrementLine(ctx, userID, productID)
	if errDec != nil {
		log.Printf("repo decrement line error: %v", errDec)
		return errDec
	}

	s.invalidateCache(userID)
	return nil
}

// Remove drops a line regardless of quantity. Idempotent.
func (s *CartService) Remove(ctx context.Context, userID string, productID int64) error {
	errRemove := s.repo.RemoveLine(ctx, userID, productID)
	if errRemove != nil {
		log.Printf("repo remove line error: %v", errRemove)
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

// RemoveMany drops the given lines in one write.
func (s *CartService) RemoveMany(ctx context.Context, userID string, productIDs []int64) error {
	errRemove := s.repo.RemoveLines(ctx, userID, productIDs)
	if errRemove != nil {
		log.Printf("repo remove lines error: %v", errRemove)
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

// Clear empties the whole cart. A cart that was never stored counts as
// already cleared.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		log.Printf("repo delete cart error: %v", errDelete)
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, userID)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v", errInvalidate)
	}
}
