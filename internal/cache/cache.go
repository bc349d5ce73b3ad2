// Package cache provides a Redis-backed cache for fetched remote sources,
// so repeated builds against the same manifest or caption URLs skip the
// network round trip.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subinject/subinject/internal/config"
)

// Cache stores fetched source bytes keyed by URL
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache instance and verifies the Redis connection
func New(cfg config.CacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifies the Redis connection is alive
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetSource returns the cached bytes for a source URL, or nil on a miss
func (c *Cache) GetSource(ctx context.Context, url string) ([]byte, error) {
	data, err := c.client.Get(ctx, sourceKey(url)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get source from cache: %w", err)
	}

	return data, nil
}

// SetSource caches the bytes fetched from a source URL
func (c *Cache) SetSource(ctx context.Context, url string, data []byte) error {
	return c.client.Set(ctx, sourceKey(url), data, c.ttl).Err()
}

func sourceKey(url string) string {
	return fmt.Sprintf("source:%s", url)
}
