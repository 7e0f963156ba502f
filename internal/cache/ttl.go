package cache

import (
	"sync"
	"time"
)

// Cache is the process-local accelerator in front of the revocation ledger.
// It is never authoritative; a miss always falls through to the database.
type Cache interface {
	Get(key string) (bool, bool)
	Set(key string, value bool)
	Delete(key string)
	Purge() int
}

type entry struct {
	value     bool
	expiresAt time.Time
}

// TTLCache is a mutex-guarded map with per-entry expiry. Lookups never
// return stale entries; Purge drops them eagerly.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration

	// now is swappable in tests
	now func() time.Time
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns (value, true) for a live entry, (false, false) otherwise.
func (c *TTLCache) Get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return false, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL, replacing any prior entry.
func (c *TTLCache) Set(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete evicts key immediately.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Purge drops all expired entries and returns how many were removed.
func (c *TTLCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, live or expired.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
