package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a process-local TTL key/value store used to shield external
// services from repeated requests. Expiry is lazy: a Get past the TTL
// reports a miss and the caller repopulates via Set. There is no cleanup
// goroutine; instead the store is bounded by maxEntries so it cannot grow
// without limit between restarts.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache bounded to maxEntries. maxEntries <= 0 means
// unbounded. defaultTTL applies when Set is called with ttl <= 0.
func New(maxEntries int, defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached value for key, or ok=false on a miss or an
// expired entry.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Entries are idempotent snapshots of
// external data, so last-writer-wins is acceptable.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops all expired entries; if nothing had expired it drops
// the entry closest to expiry to make room. Caller holds c.mu.
func (c *Cache) evictLocked() {
	now := c.now()
	dropped := false
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			dropped = true
		}
	}
	if dropped {
		return
	}

	var victim string
	var earliest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
