package payments

import (
	"context"
	"testing"
	"time"
)

type fakeIdempotencyStore struct {
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisGuardMarksOnce(t *testing.T) {
	guard := NewRedisGuard(newFakeIdempotencyStore(), time.Minute)

	first, err := guard.CheckAndMark(context.Background(), "mp-webhook", "700123")
	if err != nil || !first {
		t.Fatalf("expected first delivery, got %v %v", first, err)
	}
	again, err := guard.CheckAndMark(context.Background(), "mp-webhook", "700123")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if again {
		t.Fatal("repeated delivery must not count as first")
	}
}

func TestRedisGuardUnmarkReopensKey(t *testing.T) {
	guard := NewRedisGuard(newFakeIdempotencyStore(), time.Minute)

	if _, err := guard.CheckAndMark(context.Background(), "mp-webhook", "700123"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := guard.Unmark(context.Background(), "mp-webhook", "700123"); err != nil {
		t.Fatalf("unmark failed: %v", err)
	}

	first, err := guard.CheckAndMark(context.Background(), "mp-webhook", "700123")
	if err != nil || !first {
		t.Fatalf("expected delivery to be processed after unmark, got %v %v", first, err)
	}
}

func TestRedisGuardScopesAreIndependent(t *testing.T) {
	guard := NewRedisGuard(newFakeIdempotencyStore(), time.Minute)

	if _, err := guard.CheckAndMark(context.Background(), "mp-webhook", "700123"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	first, err := guard.CheckAndMark(context.Background(), "mp-ipn", "700123")
	if err != nil || !first {
		t.Fatalf("a different scope must not be suppressed, got %v %v", first, err)
	}
}
