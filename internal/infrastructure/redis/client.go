package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDialTimeout applies when the URL carries no dial_timeout parameter.
const DefaultDialTimeout = 5 * time.Second

// ParseOptions turns a redis:// URL into client options, filling in DefaultDialTimeout.
func ParseOptions(redisURL string) (*redis.Options, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return opts, nil
}

// NewClient creates a Redis client from a redis:// URL and pings it. The ping is
// bounded by the dial timeout so a dead server fails startup quickly.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
