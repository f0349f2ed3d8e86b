package payments

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	ttl     time.Duration
	stop    chan struct{}
}

// NewMemCache builds an in-process snapshot cache with a background sweep.
// Used in tests and single-instance deployments without Redis.
func NewMemCache(ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &memCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *memCache) Put(_ context.Context, paymentRef string, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[paymentRef] = memEntry{snap: snap, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *memCache) Get(_ context.Context, paymentRef string) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[paymentRef]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, paymentRef)
		return nil, nil
	}
	snap := entry.snap
	return &snap, nil
}

func (c *memCache) Delete(_ context.Context, paymentRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, paymentRef)
	return nil
}

// Close stops the background sweep.
func (c *memCache) Close() {
	close(c.stop)
}

func (c *memCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
