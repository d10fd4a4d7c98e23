package stats

import (
	"context"
	"time"

	"github.com/craftd/craftd/internal/runtime"
)

// DefaultTTL bounds how stale a cached sample may be when serving bulk
// stats queries.
const DefaultTTL = 3 * time.Second

// SampleFunc produces a fresh resource sample for one instance.
type SampleFunc func(ctx context.Context, id string) (*runtime.ResourceUsage, error)

// Cache wraps a sampler with a per-instance TTL cache. It is owned by one
// backend instance; there is no cross-process coherence.
type Cache struct {
	sample SampleFunc
	cache  *runtime.TTLCache[*runtime.ResourceUsage]
}

// NewCache returns a caching sampler with the given TTL (DefaultTTL when
// ttl <= 0).
func NewCache(sample SampleFunc, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		sample: sample,
		cache:  runtime.NewTTLCache[*runtime.ResourceUsage](ttl),
	}
}

// Get returns the cached sample for id, sampling fresh on miss or expiry.
func (c *Cache) Get(ctx context.Context, id string) (*runtime.ResourceUsage, error) {
	return c.cache.GetOrFill(id, func() (*runtime.ResourceUsage, error) {
		return c.sample(ctx, id)
	})
}

// Invalidate drops the cached sample for id, e.g. after the instance
// stopped.
func (c *Cache) Invalidate(id string) {
	c.cache.Invalidate(id)
}
