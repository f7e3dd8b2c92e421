// Package cache stores serialized score results keyed by request content.
// Identical score requests within the TTL window are served from cache; the
// computation is pure, so a cached result is always current for its inputs.
package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Item is a cached entry with expiration.
type Item struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired
func (i *Item) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// Cache provides thread-safe caching with TTL, backed by Redis when
// available and an in-memory map otherwise.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	ttl   time.Duration

	redis *redis.Client
}

// New creates a cache with the specified TTL. An empty redisAddr disables the
// Redis layer; a failed ping degrades to in-memory only.
func New(ttl time.Duration, redisAddr string) *Cache {
	c := &Cache{
		items: make(map[string]*Item),
		ttl:   ttl,
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unavailable, score cache will be in-memory only",
				"addr", redisAddr, "error", err)
		} else {
			slog.Info("Score cache connected to Redis", "addr", redisAddr)
			c.redis = client
		}
	}

	go c.cleanup()
	return c
}

// cleanup removes expired in-memory items periodically.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, item := range c.items {
			if item.IsExpired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// Key creates a consistent cache key from request content.
func Key(input []byte) string {
	hash := md5.Sum(input)
	return fmt.Sprintf("score:%x", hash)
}

// Get retrieves a cached result.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			return data, true
		}
		if err != redis.Nil {
			slog.Warn("Redis cache read failed, falling back to memory", "error", err)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	item, exists := c.items[key]
	if !exists || item.IsExpired() {
		return nil, false
	}
	return item.Data, true
}

// Set stores a result under the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("Redis cache write failed", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &Item{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Size returns the number of in-memory entries, expired ones included.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close releases the Redis connection if one exists.
func (c *Cache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
