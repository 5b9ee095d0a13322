package redisclient

import (
	"context"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "carelink:")
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "doctors:all"); err != nil || ok {
		t.Fatalf("Get on empty cache = ok %v, err %v", ok, err)
	}

	if err := cache.Set(ctx, "doctors:all", []byte(`[{"name":"Dr. Ada Reyes"}]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("carelink:doctors:all") {
		t.Fatal("value not stored under the prefixed key")
	}
	if ttl := mr.TTL("carelink:doctors:all"); ttl != time.Minute {
		t.Errorf("ttl = %s, want 1m", ttl)
	}

	got, ok, err := cache.Get(ctx, "doctors:all")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if string(got) != `[{"name":"Dr. Ada Reyes"}]` {
		t.Errorf("Get = %s", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "doctors:all"); ok {
		t.Error("entry outlived its ttl")
	}
}

func TestCacheDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "carelink:")
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := cache.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("carelink:a") || mr.Exists("carelink:b") {
		t.Error("deleted keys still present")
	}
	if !mr.Exists("carelink:c") {
		t.Error("untouched key removed")
	}
	if err := cache.Delete(ctx); err != nil {
		t.Errorf("Delete with no keys: %v", err)
	}
}

func TestCacheErrorsWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "carelink:")
	mr.Close()

	if _, ok, err := cache.Get(context.Background(), "doctors:all"); err == nil || ok {
		t.Fatalf("Get = ok %v, err %v, want an error", ok, err)
	}
	if err := cache.Set(context.Background(), "doctors:all", []byte("x"), time.Minute); err == nil {
		t.Fatal("Set succeeded with redis down")
	}
}
