// Package cache provides the single caching abstraction used across the
// dialogue core. Every cache kind is a Cache[T] parameterized by a key
// prefix, a TTL, and JSON-encoded values; fingerprint computation lives
// with the caller, key layout and eviction policy live here.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rediser is the subset of the Redis client the cache needs. *redis.Client
// satisfies it; tests substitute fakes built on redis.NewStringResult and
// friends.
type Rediser interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is a read-through JSON cache over one key namespace.
type Cache[T any] struct {
	rdb    Rediser
	prefix string
	ttl    time.Duration
}

// New creates a cache for prefix with the given TTL. Keys are laid out as
// "<prefix>:<key>".
func New[T any](rdb Rediser, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{rdb: rdb, prefix: prefix, ttl: ttl}
}

// TTL returns the cache's configured time-to-live.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Get returns the cached value for key and whether it was present.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := c.rdb.Get(ctx, c.prefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("cache get %s: %w", c.prefix, err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// A corrupt entry behaves like a miss; the writer will replace it.
		return zero, false, nil
	}
	return v, true, nil
}

// Set stores value under key with the cache TTL. Writes are last-writer-wins;
// identical fingerprints always encode identical values, so overwrites are
// idempotent.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", c.prefix, err)
	}
	if err := c.rdb.Set(ctx, c.prefix+":"+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", c.prefix, err)
	}
	return nil
}

// Delete removes key from the cache.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", c.prefix, err)
	}
	return nil
}

// TextKey returns the md5 hex digest of text, the key form used by the
// intent and sentiment caches.
func TextKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
