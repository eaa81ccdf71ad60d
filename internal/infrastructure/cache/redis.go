// Package cache builds the Redis connection that backs pkg/stream's
// persisted state store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smilemakc/ruleforge/internal/config"
)

// NewClient parses cfg, dials Redis, and verifies the connection before
// returning. The returned client is handed to stream.NewRedisStateStore,
// which owns the get/set/scan surface the state store needs.
func NewClient(cfg config.StateStoreConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.DB = cfg.RedisDB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Health checks that client is still reachable.
func Health(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
