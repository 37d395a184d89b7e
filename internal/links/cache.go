package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"linkpulse/internal/storage"
)

// ErrCacheMiss is returned when a short code is not in the cache.
var ErrCacheMiss = errors.New("links: cache miss")

// Cache is a Redis-backed lookup cache for resolved links. It sits in
// front of the storage gateway on the redirect hot path; cache failures
// are reported to the caller for logging but never block a lookup.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects a lookup cache to Redis.
func NewCache(addr, password string, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(code string) string {
	return "linkpulse:link:" + code
}

// Get returns the cached link for a short code, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, code string) (*storage.Link, error) {
	data, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var link storage.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &link, nil
}

// Set stores a link under its short code with the configured TTL.
func (c *Cache) Set(ctx context.Context, link *storage.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(link.ShortCode), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops a short code from the cache.
func (c *Cache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
