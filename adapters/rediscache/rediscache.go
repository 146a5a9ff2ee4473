// Package rediscache provides a Redis-backed report cache.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revlens/revlens/ports"
)

// Cache implements ports.ReportCache on top of Redis.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connect %s: %w", addr, err)
	}

	return &Cache{client: client}, nil
}

// Get returns the cached artifact for key, or ports.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return val, nil
}

// Set stores an artifact under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, artifact []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, artifact, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Noop is a cache that never hits. It stands in when caching is disabled.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ports.ErrCacheMiss
}

// Set discards the artifact.
func (Noop) Set(ctx context.Context, key string, artifact []byte, ttl time.Duration) error {
	return nil
}

// Ensure interface compliance.
var (
	_ ports.ReportCache = (*Cache)(nil)
	_ ports.ReportCache = Noop{}
)
