package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalRejectsSecondHolder(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Obtain(ctx, "sync")
	if err != nil {
		t.Fatalf("first obtain: %v", err)
	}
	if _, err := l.Obtain(ctx, "sync"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	other, err := l.Obtain(ctx, "other-key")
	if err != nil {
		t.Fatalf("expected independent key to be free: %v", err)
	}
	other()

	release()
	release()

	again, err := l.Obtain(ctx, "sync")
	if err != nil {
		t.Fatalf("expected key to be free after release: %v", err)
	}
	again()
}

func TestRefreshIntervalIsAThirdOfTTL(t *testing.T) {
	if got := refreshInterval(90 * time.Second); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	if got := refreshInterval(time.Millisecond); got != 10*time.Millisecond {
		t.Fatalf("expected floor of 10ms, got %s", got)
	}
}

func TestRedisLockOutlivesTTLWhileHeld(t *testing.T) {
	addr := os.Getenv("TARPAULIN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TARPAULIN_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedis(rdb, 300*time.Millisecond)
	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000")

	release, err := l.Obtain(ctx, key)
	if err != nil {
		t.Fatalf("first obtain: %v", err)
	}
	time.Sleep(time.Second)
	if _, err := l.Obtain(ctx, key); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected lock to be kept past its ttl, got %v", err)
	}

	release()
	again, err := l.Obtain(ctx, key)
	if err != nil {
		t.Fatalf("expected key to be free after release: %v", err)
	}
	again()
}
