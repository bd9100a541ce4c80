package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// keyPrefix namespaces gateway entries in a shared Redis.
const keyPrefix = "gw:cache:"

// Redis is the distributed KVCache backend.
type Redis struct {
	client *redis.Client
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis builds a Redis cache from a URL
// (redis://[user:pass@]host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=cache.NewRedis: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client; tests use this with
// miniredis.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the cached value when present.
func (c *Redis) Get(ctx domain.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("op=cache.redis.Get: %w", err)
	}
	c.hits.Add(1)
	return val, true, nil
}

// Set stores value under key for ttl.
func (c *Redis) Set(ctx domain.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.redis.Set: %w", err)
	}
	return nil
}

// Clear drops all gateway entries by prefix scan.
func (c *Redis) Clear(ctx domain.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("op=cache.redis.Clear: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("op=cache.redis.Clear: %w", err)
		}
	}
	return nil
}

// Stats counts entries under the gateway prefix.
func (c *Redis) Stats(ctx domain.Context) (domain.CacheStats, error) {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	entries := 0
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return domain.CacheStats{}, fmt.Errorf("op=cache.redis.Stats: %w", err)
	}
	return domain.CacheStats{
		Backend: "redis",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close releases the underlying client.
func (c *Redis) Close() error { return c.client.Close() }
