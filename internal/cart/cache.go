package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, buyerID string) (*domain.Cart, error)
	Set(ctx context.Context, buyerID string, cart *domain.Cart) error
	Delete(ctx context.Context, buyerID string) error
}

// RedisCache stores carts as JSON under cart:<buyer>. TTLs get up to maxJitter extra so
// entries written together do not expire together.
type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:    client,
		baseTTL:   15 * time.Minute,
		maxJitter: 5 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(buyerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, buyerID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL
	if r.maxJitter > 0 {
		ttl += rand.N(r.maxJitter)
	}
	if err := r.client.Set(ctx, cacheKey(buyerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, buyerID string) error {
	if err := r.client.Del(ctx, cacheKey(buyerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(buyerID string) string {
	return fmt.Sprintf("cart:%s", buyerID)
}

// NoopCache always misses. It is used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (NoopCache) Set(context.Context, string, *domain.Cart) error { return nil }

func (NoopCache) Delete(context.Context, string) error { return nil }
