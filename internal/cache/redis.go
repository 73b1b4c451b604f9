package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared, multi-process backing for advisory caches —
// the identifier's retry cache when more than one identifier process shares
// a pseudo_key space (spec §9 Open Question (b): the behavior is specified,
// not the backing store; this is one of two interchangeable backings).
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies connectivity eagerly so
// misconfiguration fails at startup, not on first use.
func NewRedisCache(ctx context.Context, addr, password string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("cache: redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis at %s: %w", addr, err)
	}

	logger := slog.Default().With("component", "retry_cache_redis")
	logger.Info("redis retry cache connected", "addr", addr)

	return &RedisCache{client: client, logger: logger, ttl: ttl}, nil
}

// Seen records key as observed with the cache's configured TTL.
func (c *RedisCache) Seen(ctx context.Context, key string) error {
	return c.client.Set(ctx, key, 1, c.ttl).Err()
}

// WasSeen reports whether key was recently recorded.
func (c *RedisCache) WasSeen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
