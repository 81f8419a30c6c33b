package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
)

type mapEntry struct {
	value     []byte
	expiresAt time.Time
}

// MapCache is an in-process cache with per-entry expiry. Expired entries are
// dropped lazily on read.
type MapCache struct {
	mu  sync.RWMutex
	m   map[string]mapEntry
	ttl time.Duration
	now func() time.Time
}

func NewMapCache(ttl time.Duration) *MapCache {
	return &MapCache{
		m:   make(map[string]mapEntry),
		ttl: ttl,
		now: time.Now,
	}
}

var _ ResponseCache = (*MapCache)(nil)

func (c *MapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, exists := c.m[key]
	c.mu.RUnlock()

	if !exists {
		metrics.CacheMisses.Inc()
		return nil, false, nil
	}

	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		metrics.CacheMisses.Inc()
		return nil, false, nil
	}

	metrics.CacheHits.Inc()
	return e.value, true, nil
}

func (c *MapCache) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.m[key] = mapEntry{value: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	metrics.CacheStores.Inc()
	return nil
}

func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
