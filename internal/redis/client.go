package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client is the process-wide Redis handle shared by the feed cache and the job stream.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// URL (redis://[:password@]host:port[/db]) and
// builds a client. No connection is made until first use.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// Stream reads block for up to blockTimeout; leave headroom above it.
	opts.ReadTimeout = 10 * time.Second

	return &Client{Client: redis.NewClient(opts)}, nil
}

// Connect builds a client and pings it so startup fails fast.
func Connect(ctx context.Context, redisURL string) (*Client, error) {
	client, err := NewClient(redisURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().Str("addr", client.Options().Addr).Msg("Connected to Redis")
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
