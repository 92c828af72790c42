package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	client, err := NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client, mr
}

type cachedMember struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	client, _ := newTestRedis(t)
	ctx := context.Background()

	in := cachedMember{Number: 1042, Name: "J. Jansen", Region: "utrecht"}
	if err := client.SetJSON(ctx, "member:1042", in, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var out cachedMember
	found, err := client.GetJSON(ctx, "member:1042", &out)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !found {
		t.Fatal("Expected cache hit")
	}
	if out != in {
		t.Errorf("Round-trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestRedisClient_GetJSON_Miss(t *testing.T) {
	client, _ := newTestRedis(t)

	var out cachedMember
	found, err := client.GetJSON(context.Background(), "member:missing", &out)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss")
	}
}

func TestRedisClient_GetJSON_CorruptEntry(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	mr.Set("member:bad", "{not json")

	var out cachedMember
	found, err := client.GetJSON(ctx, "member:bad", &out)
	if err == nil {
		t.Error("Expected error for corrupt entry")
	}
	if found {
		t.Error("Expected corrupt entry to read as miss")
	}

	// Corrupt entry must be evicted.
	if mr.Exists("member:bad") {
		t.Error("Expected corrupt entry to be deleted")
	}
}

func TestRedisClient_Delete(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	mr.Set("a", "1")
	mr.Set("b", "2")

	if err := client.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if mr.Exists("a") || mr.Exists("b") {
		t.Error("Expected keys to be deleted")
	}

	if err := client.Delete(ctx); err != nil {
		t.Errorf("Delete with no keys should be a no-op, got %v", err)
	}
}

func TestRedisClient_DeletePattern(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	mr.Set("member:1", "a")
	mr.Set("member:2", "b")
	mr.Set("product:1", "c")

	if err := client.DeletePattern(ctx, "member:*"); err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}

	if mr.Exists("member:1") || mr.Exists("member:2") {
		t.Error("Expected member keys to be deleted")
	}
	if !mr.Exists("product:1") {
		t.Error("Expected product key to survive")
	}
}

func TestRedisClient_Counters(t *testing.T) {
	client, _ := newTestRedis(t)
	ctx := context.Background()

	n, err := client.Incr(ctx, "ratelimit:user:42")
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected counter 1, got %d", n)
	}

	n, err = client.Incr(ctx, "ratelimit:user:42")
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected counter 2, got %d", n)
	}

	if err := client.Expire(ctx, "ratelimit:user:42", time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "ratelimit:user:42")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL in (0, 1m], got %v", ttl)
	}
}

func TestRedisClient_TTLFor(t *testing.T) {
	client, _ := newTestRedis(t)

	if ttl := client.TTLFor("member"); ttl != 15*time.Minute {
		t.Errorf("Expected configured member TTL 15m, got %v", ttl)
	}
	if ttl := client.TTLFor("unknown_entry"); ttl != 5*time.Minute {
		t.Errorf("Expected default TTL 5m, got %v", ttl)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisURL = "not-a-url"

	if _, err := NewRedisClient(cfg); err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}
