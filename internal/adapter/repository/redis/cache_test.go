package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iho/commissions/internal/usecase"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "seller-statements:2024-05", []byte(`[{"ID":"2024-05_RD1"}]`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "seller-statements:2024-05")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if string(val) != `[{"ID":"2024-05_RD1"}]` {
		t.Fatalf("unexpected cached value %s", val)
	}
	if !mr.Exists("cache:seller-statements:2024-05") {
		t.Fatalf("expected key to be stored under the cache prefix")
	}
}

func TestCacheMiss(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)

	if _, err := cache.Get(context.Background(), "absent"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheExpiresAndDeletes(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := cache.Get(ctx, "short"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}

	if err := cache.Set(ctx, "gone", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cache.Delete(ctx, "gone"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "gone"); !errors.Is(err, usecase.ErrCacheMiss) {
		t.Fatalf("expected deleted key to miss, got %v", err)
	}
}
