package metrics

import (
	"context"
	"time"

	"github.com/artpar/cmskit/core/capability"
)

// InstrumentedCache counts lookups and failed writes of a cache provider.
type InstrumentedCache struct {
	capability.CacheProvider
	m *Collector
}

// InstrumentCache wraps a cache provider with metrics.
func InstrumentCache(c capability.CacheProvider, m *Collector) *InstrumentedCache {
	return &InstrumentedCache{CacheProvider: c, m: m}
}

func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.CacheProvider.Get(ctx, key)
	result := "miss"
	if ok {
		result = "hit"
	}
	c.m.CacheLookups.WithLabelValues(c.Name(), result).Inc()
	return v, ok
}

func (c *InstrumentedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.count("set", c.CacheProvider.Set(ctx, key, value, ttl))
}

func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	return c.count("delete", c.CacheProvider.Delete(ctx, key))
}

func (c *InstrumentedCache) DeletePattern(ctx context.Context, pattern string) error {
	return c.count("delete_pattern", c.CacheProvider.DeletePattern(ctx, pattern))
}

func (c *InstrumentedCache) count(op string, err error) error {
	if err != nil {
		c.m.CacheWriteErrors.WithLabelValues(c.Name(), op).Inc()
	}
	return err
}

var _ capability.CacheProvider = (*InstrumentedCache)(nil)
