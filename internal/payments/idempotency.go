package payments

import (
	"context"
	"time"

	"github.com/kioskly/kiosk-backend/pkg/redis"
)

// DedupGuard suppresses redundant processing of repeated gateway
// notifications. Purely an optimization: a missed suppression only costs an
// extra gateway lookup, the CAS keeps the outcome correct. Marks must be
// released via Unmark when the observed outcome was not terminal, since the
// provider reuses one payment id across created and updated deliveries.
type DedupGuard interface {
	CheckAndMark(ctx context.Context, scope, id string) (bool, error)
	Unmark(ctx context.Context, scope, id string) error
}

type redisGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewRedisGuard builds a SetNX-based dedup guard.
func NewRedisGuard(store redis.IdempotencyStore, ttl time.Duration) DedupGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisGuard{store: store, ttl: ttl}
}

// CheckAndMark returns true when this delivery is the first one seen.
func (g *redisGuard) CheckAndMark(ctx context.Context, scope, id string) (bool, error) {
	key := g.store.IdempotencyKey(scope, id)
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Unmark releases the key so a later delivery for the same payment id is
// processed again.
func (g *redisGuard) Unmark(ctx context.Context, scope, id string) error {
	return g.store.Del(ctx, g.store.IdempotencyKey(scope, id))
}

type noopGuard struct{}

// NewNoopGuard builds a guard that never suppresses anything.
func NewNoopGuard() DedupGuard {
	return noopGuard{}
}

func (noopGuard) CheckAndMark(context.Context, string, string) (bool, error) {
	return true, nil
}

func (noopGuard) Unmark(context.Context, string, string) error { return nil }
