package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"walletnotify/internal/model"
)

// Message represents a message read from a Redis stream.
type Message struct {
	ID    string // Redis message ID (e.g., "1702000000000-0")
	Event model.WebhookEvent
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	// Should be called at worker startup.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read reads new messages for this consumer with XREADGROUP.
	// block: how long to wait for new messages (0 = forever)
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns messages delivered to this consumer but never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack acknowledges that a message has been processed.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of pending (unacknowledged) messages for the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
	log    *slog.Logger
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client, log: slog.Default().With("component", "consumer")}
}

// EnsureGroup creates the group with MKSTREAM, starting from "0" so events
// queued before the first worker started are not lost.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		// "BUSYGROUP" means group already exists - that's fine
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.log.Debug("EnsureGroup: already exists", "stream", stream, "group", group)
			return nil
		}
		c.log.Error("EnsureGroup FAILED", "stream", stream, "group", group, "error", err)
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.log.Info("EnsureGroup OK: created", "stream", stream, "group", group)
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	// ">" means read only new messages not yet delivered to any consumer
	return c.read(ctx, stream, group, consumer, ">", count, block)
}

// ReadPending uses "0" instead of ">" to re-read in-flight messages after a crash.
func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, "0", count, 0)
}

func (c *RedisConsumer) read(ctx context.Context, stream, group, consumer, start string, count int64, block time.Duration) ([]Message, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    block,
	}
	if start == "0" {
		// Pending reads must not block; -1 omits BLOCK entirely.
		args.Block = -1
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseWebhookEvent(msg.Values)
			if err != nil {
				c.log.Warn("Skipping malformed message", "msg_id", msg.ID, "error", err)
				// Ack so it doesn't sit in the pending list forever.
				_ = c.client.XAck(ctx, stream, group, msg.ID).Err()
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	return messages, nil
}

// Ack acknowledges messages using XACK.
func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		c.log.Error("Ack FAILED", "stream", stream, "group", group, "ids", messageIDs, "error", err)
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Pending returns the count of pending messages for the consumer group.
func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
