package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"walletnotify/internal/model"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event *model.WebhookEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish adds an event to the stream using XADD with an auto-generated ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event *model.WebhookEvent) (string, error) {
	startTime := time.Now()
	log := slog.Default().With("component", "publisher", "stream", stream, "event_id", event.ID, "event_type", event.EventType)

	values, err := EncodeEvent(event)
	if err != nil {
		log.Error("Publish FAILED", "error", err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		log.Error("Publish FAILED", "error", err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Debug("Publish OK", "msg_id", messageID, "duration", time.Since(startTime))
	return messageID, nil
}
