// Package cache provides the Dragonfly/Redis client used for cross-instance
// coordination.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/halaqah/internal/platform/lock"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
	lockPrefix  = "halaqah:lock:"
)

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New connects to the cache and pings it.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Locker returns a lock shared by every instance connected to this cache.
// Held keys expire after ttl.
func (c *Cache) Locker(ttl time.Duration) *lock.Redis {
	return lock.NewRedis(c.Client, lockPrefix, ttl)
}

func (c *Cache) Close() error {
	return c.Client.Close()
}

// Ping reports whether the cache answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
