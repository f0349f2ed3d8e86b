package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "kiosk:lock:sweep", 0)
	if err != nil {
		t.Fatalf("lock constructor failed: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire, got %v %v", ok, err)
	}

	other, err := NewRedisLock(store, "kiosk:lock:sweep", 0)
	if err != nil {
		t.Fatalf("lock constructor failed: %v", err)
	}
	ok, err = other.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if ok {
		t.Fatal("second worker must not acquire a held lock")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err = other.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, got %v %v", ok, err)
	}
}

func TestRedisLockReleaseOnlyWhenOwned(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisLock(store, "kiosk:lock:sweep", 0)
	if err != nil {
		t.Fatalf("lock constructor failed: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected acquire, got %v %v", ok, err)
	}

	// Simulate TTL expiry plus takeover by another worker.
	store.values["kiosk:lock:sweep"] = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release must be a noop for foreign locks: %v", err)
	}
	if store.values["kiosk:lock:sweep"] != "someone-else" {
		t.Fatal("foreign lock must not be deleted")
	}
}

func TestRedisLockReleaseWithoutAcquire(t *testing.T) {
	lock, err := NewRedisLock(newFakeLockStore(), "kiosk:lock:sweep", 0)
	if err != nil {
		t.Fatalf("lock constructor failed: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without ownership must be a noop: %v", err)
	}
}
