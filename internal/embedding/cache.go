package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// CacheKey is the exact-match key of a text: hex SHA-256, no normalization.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Cache is the bounded in-process vector cache.
type Cache struct {
	c   *ristretto.Cache[string, []float32]
	ttl time.Duration
}

// NewCache holds up to maxEntries vectors, each for at most ttl (0 = no expiry).
func NewCache(maxEntries int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the cached vector for key.
func (c *Cache) Get(key string) ([]float32, bool) {
	return c.c.Get(key)
}

// Set stores a vector. Admission is asynchronous; call Wait to observe it.
func (c *Cache) Set(key string, vec []float32) {
	if c.ttl > 0 {
		c.c.SetWithTTL(key, vec, 1, c.ttl)
		return
	}
	c.c.Set(key, vec, 1)
}

// Wait blocks until pending Sets are applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.c.Clear()
}

// Close stops the cache goroutines.
func (c *Cache) Close() {
	c.c.Close()
}

// RedisCache is the optional shared tier, keyed by prefix + CacheKey.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

// Get returns the vector for key. A corrupt entry is deleted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	s, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var vec []float32
	if err := json.Unmarshal(s, &vec); err != nil {
		_ = c.rdb.Del(ctx, c.prefix+key).Err()
		return nil, false, nil
	}
	return vec, true, nil
}

// Set stores the vector with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	b, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, b, c.ttl).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
