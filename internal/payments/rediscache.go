package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kioskly/kiosk-backend/pkg/redis"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a Redis-backed snapshot cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) (Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisCache{client: client, ttl: ttl}, nil
}

func (c *redisCache) Put(ctx context.Context, paymentRef string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return c.client.Set(ctx, c.client.PaymentCacheKey(paymentRef), payload, c.ttl)
}

func (c *redisCache) Get(ctx context.Context, paymentRef string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, c.client.PaymentCacheKey(paymentRef))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

func (c *redisCache) Delete(ctx context.Context, paymentRef string) error {
	return c.client.Del(ctx, c.client.PaymentCacheKey(paymentRef))
}
