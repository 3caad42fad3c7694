package reconcile

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Errorf("release() error = %v", err)
	}
}

func TestNewRedisLocker_BadURL(t *testing.T) {
	if _, err := NewRedisLocker(context.Background(), "not-a-url://", ""); err == nil {
		t.Error("NewRedisLocker() error = nil, want parse error")
	}
}

// Runs only against a real Redis pointed to by ESTIMATOR_TEST_REDIS_URL.
func TestRedisLocker_MutualExclusion(t *testing.T) {
	url := os.Getenv("ESTIMATOR_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ESTIMATOR_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	key := "estimator:test:lock:" + ulid.Make().String()

	a, err := NewRedisLocker(ctx, url, key)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	defer a.Close()
	b, err := NewRedisLocker(ctx, url, key)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	defer b.Close()

	release, err := a.Acquire(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if _, err := b.Acquire(ctx, 10*time.Second); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second Acquire() error = %v, want ErrLockHeld", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	releaseB, err := b.Acquire(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	releaseB(ctx)
}
