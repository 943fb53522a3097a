package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"meatline/internal/domain"
)

const (
	keyPrefix = "cart:"
	baseTTL   = 15 * time.Minute
	// Jitter spreads expiry so a burst of cached carts does not all fall
	// out at once.
	ttlJitter = 5 * time.Minute
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := c.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	cart := &domain.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		// A cached cart we cannot decode is as good as a miss. Drop it
		// so it does not keep shadowing the repository.
		_ = c.client.Del(ctx, keyPrefix+userID).Err()
		return nil, ErrCacheMiss
	}
	return cart, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	ttl := baseTTL + time.Duration(rand.Int63n(int64(ttlJitter)))
	if err := c.client.Set(ctx, keyPrefix+userID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
