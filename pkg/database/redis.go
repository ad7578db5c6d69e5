package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig points at an optional Redis server. An empty URL means Redis
// is not configured.
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL is set.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// NewRedisClient parses the redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
