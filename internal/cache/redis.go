// Package cache provides the Redis-backed session cache and rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the Redis client shared by the session cache, the rate
// limiter and the media cleanup queue.
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Requests touch Redis at most three times (identity, rate limit,
	// cleanup enqueue), so a small pool with short timeouts keeps a slow
	// Redis from stalling the API.
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client, now: time.Now}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying client for the cleanup queue.
func (c *Cache) Client() *redis.Client {
	return c.client
}
