package web

import (
	"sync"
	"time"
)

// ttlCache keeps rendered responses for a short time. Stale entries are
// dropped lazily on put.
type ttlCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	body      []byte
	updatedAt time.Time
}

// maxCacheEntries bounds the cache; distinct scroll positions would
// otherwise grow it without limit.
const maxCacheEntries = 256

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *ttlCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.updatedAt) >= c.ttl {
		return nil, false
	}
	return e.body, true
}

func (c *ttlCache) put(key string, body []byte) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxCacheEntries {
		for k, e := range c.entries {
			if now.Sub(e.updatedAt) >= c.ttl {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= maxCacheEntries {
			clear(c.entries)
		}
	}
	c.entries[key] = cacheEntry{body: body, updatedAt: now}
}
