package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Runs only against a real Redis: REDIS_ADDR=localhost:6379 go test ./internal/cache
func TestRedis_SetGetExpire(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedis(rdb, "test:"+uuid.NewString()+":")
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 200*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q ok=%v err=%v", v, ok, err)
	}

	time.Sleep(300 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected key to expire")
	}
}

func TestRedis_RejectsNonPositiveTTL(t *testing.T) {
	c := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	if err := c.Set(context.Background(), "k", []byte("v"), 0); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}
