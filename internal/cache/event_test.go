package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1
	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestEventDeduper_MarkSeen(t *testing.T) {
	client := setupTestRedis(t)
	deduper := NewEventDeduper(client, time.Minute)
	ctx := context.Background()

	first, err := deduper.MarkSeen(ctx, "evt-1")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if !first {
		t.Fatal("first sighting should report true")
	}

	again, err := deduper.MarkSeen(ctx, "evt-1")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if again {
		t.Fatal("second sighting should report false")
	}

	ttl := client.TTL(ctx, eventKey("evt-1")).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected TTL %v", ttl)
	}

	if err := deduper.Forget(ctx, "evt-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	afterForget, _ := deduper.MarkSeen(ctx, "evt-1")
	if !afterForget {
		t.Error("forgotten id should be new again")
	}
}
