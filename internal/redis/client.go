package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clientName  = "walletnotify"
	dialTimeout = 5 * time.Second
	pingTimeout = 3 * time.Second
)

// Client is the process-wide Redis connection shared by the event deduper,
// the webhook stream publisher and the stream consumers.
type Client struct {
	*redis.Client
}

// NewClient creates a client from redis://[:password@]host:port[/db] or
// rediss:// for TLS. It does not connect; call Ping to fail fast.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = dialTimeout
	}

	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping verifies the connection within a short deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("Connected to Redis", "addr", c.Options().Addr, "db", c.Options().DB)
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
