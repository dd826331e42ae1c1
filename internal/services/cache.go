package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/metrics"
)

const DefaultCacheTTL = 600 * time.Second

// CacheCoordinator implements cache-aside reads and best-effort invalidation
// over a cache.Store. Values are stored as JSON.
type CacheCoordinator struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCacheCoordinator(store cache.Store, ttl time.Duration, logger *slog.Logger) *CacheCoordinator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CacheCoordinator{store: store, ttl: ttl, logger: logger}
}

// Remember returns the cached value for key, or calls load and caches its
// result. Cache failures degrade to a direct load; load errors are returned
// as is and nothing is cached.
func Remember[T any](ctx context.Context, c *CacheCoordinator, key string, load func(context.Context) (T, error)) (T, error) {
	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("cache read failed", "key", key, "error", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return v, nil
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// Invalidate deletes exact keys. Failures are logged, never returned: a
// failed invalidation leaves the entry stale until its TTL expires.
func (c *CacheCoordinator) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidations.WithLabelValues("key", "error").Inc()
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
		return
	}
	metrics.CacheInvalidations.WithLabelValues("key", "ok").Inc()
}

// InvalidatePattern deletes every key matching each glob pattern.
func (c *CacheCoordinator) InvalidatePattern(ctx context.Context, patterns ...string) {
	for _, pattern := range patterns {
		keys, err := c.store.Keys(ctx, pattern)
		if err == nil {
			err = c.store.Delete(ctx, keys...)
		}
		if err != nil {
			metrics.CacheInvalidations.WithLabelValues("pattern", "error").Inc()
			c.logger.Warn("cache pattern invalidation failed", "pattern", pattern, "error", err)
			continue
		}
		metrics.CacheInvalidations.WithLabelValues("pattern", "ok").Inc()
	}
}
