package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// EventSeenPrefix is the key prefix for processed webhook event ids
	EventSeenPrefix = "webhook:seen:"

	// DefaultEventSeenTTL covers the platform's redelivery window
	DefaultEventSeenTTL = 24 * time.Hour
)

// EventDeduper remembers webhook event ids so redeliveries do not notify twice.
type EventDeduper interface {
	// MarkSeen records the id and reports whether this is its first sighting.
	MarkSeen(ctx context.Context, eventID string) (first bool, err error)

	// Forget removes the id, allowing the event to be processed again.
	Forget(ctx context.Context, eventID string) error
}

type redisEventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDeduper creates a Redis-backed deduper. ttl <= 0 uses DefaultEventSeenTTL.
func NewEventDeduper(client *redis.Client, ttl time.Duration) EventDeduper {
	if ttl <= 0 {
		ttl = DefaultEventSeenTTL
	}
	return &redisEventDeduper{client: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return EventSeenPrefix + eventID
}

// MarkSeen uses SET NX so concurrent deliveries of the same id race safely.
func (d *redisEventDeduper) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, eventKey(eventID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event seen: %w", err)
	}
	return ok, nil
}

func (d *redisEventDeduper) Forget(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("forget event: %w", err)
	}
	return nil
}
