package api

import (
	"sync"
	"sync/atomic"
	"time"
)

// responseCache is an LRU cache of rendered response bodies. Entries belong
// to a generation (the latest run) and the whole cache is dropped when the
// generation changes.
type responseCache struct {
	mu         sync.Mutex
	generation string
	entries    map[string]*cacheEntry
	order      []string // front=oldest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	body      []byte
	createdAt time.Time
}

// CacheStats reports cache effectiveness on /health.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func newResponseCache(maxEntries int, ttl time.Duration) *responseCache {
	return &responseCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// get returns the cached body for key in generation gen, or nil.
func (c *responseCache) get(gen, key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(gen)
	e, ok := c.entries[key]
	if !ok || (c.ttl > 0 && time.Since(e.createdAt) > c.ttl) {
		if ok {
			delete(c.entries, key)
			c.unlink(key)
		}
		c.misses.Add(1)
		return nil
	}

	c.unlink(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return e.body
}

func (c *responseCache) put(gen, key string, body []byte) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover(gen)
	if _, ok := c.entries[key]; ok {
		c.unlink(key)
	}
	for len(c.order) >= c.maxEntries {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = &cacheEntry{body: body, createdAt: time.Now()}
	c.order = append(c.order, key)
}

func (c *responseCache) stats() CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// rollover clears the cache when gen differs from the cached generation.
// Callers hold c.mu.
func (c *responseCache) rollover(gen string) {
	if gen == c.generation {
		return
	}
	c.generation = gen
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

func (c *responseCache) unlink(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
