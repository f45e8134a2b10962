// Package cache memoizes expensive lookups such as presigned URLs and bucket key resolution.
//
// The cache is never a source of truth. Every backend failure is logged and treated as a miss,
// entries may disappear at any time, and concurrent misses for the same key are allowed to
// recompute and overwrite each other.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/metrics"
)

// Sentinel durations returned by Store.TTL.
const (
	NoEntry  time.Duration = -2
	NoExpiry time.Duration = -1
)

// Store is a byte-oriented key/value backend with per-entry expiry.
type Store interface {
	// Get returns the value and true when the key is present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value. A non-positive ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining lifetime, NoEntry or NoExpiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

// Cache is a fail-open read-through memoizer over a Store.
type Cache struct {
	store   Store
	backend string
	logger  *zap.Logger
}

// New wraps store. backend labels metrics ("memory", "redis").
func New(store Store, backend string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, backend: backend, logger: logger.Named("cache")}
}

// GetOrCompute returns the cached value for key when present; otherwise it calls compute,
// stores the result for ttl and returns it. Empty results are returned but not stored.
// A nil cache always computes.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}

	if raw, ok := c.lookup(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		c.Invalidate(ctx, key)
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	if isEmpty(encoded) {
		return value, nil
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// Invalidate drops keys. Failures are logged.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil {
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Has reports whether key holds an unexpired entry.
func (c *Cache) Has(ctx context.Context, key string) bool {
	if c == nil {
		return false
	}
	_, ok, err := c.store.Get(ctx, key)
	return err == nil && ok
}

// RemainingTTL returns the remaining lifetime of key in milliseconds, -2 when the key is
// absent and -1 when it has no expiry.
func (c *Cache) RemainingTTL(ctx context.Context, key string) int64 {
	if c == nil {
		return int64(NoEntry)
	}
	d, err := c.store.TTL(ctx, key)
	if err != nil {
		c.logger.Warn("cache ttl lookup failed", zap.String("key", key), zap.Error(err))
		return int64(NoEntry)
	}
	switch d {
	case NoEntry, NoExpiry:
		return int64(d)
	}
	return d.Milliseconds()
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(c.backend, "error").Inc()
		c.logger.Warn("cache read failed, recomputing", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok:
		metrics.CacheLookups.WithLabelValues(c.backend, "miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(c.backend, "hit").Inc()
	return raw, true
}

var emptyEncodings = [][]byte{
	[]byte(`null`),
	[]byte(`""`),
	[]byte(`0`),
	[]byte(`false`),
	[]byte(`{}`),
	[]byte(`[]`),
}

func isEmpty(encoded []byte) bool {
	for _, e := range emptyEncodings {
		if bytes.Equal(encoded, e) {
			return true
		}
	}
	return false
}
