package verify

import (
	"sync"
	"time"
)

// Cache is the fast path: a per-worker, time-bounded map from fingerprint
// key to last-seen time that spares recently verified fingerprints a
// binding-store round trip. It is advisory only — never authoritative for a
// first verification — and a live entry always implies the same fingerprint
// matched the binding store within the freshness window.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
}

func NewCache(window time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]time.Time),
		window:  window,
	}
}

// PurgeExpired removes every entry whose last-seen time is older than the
// freshness window. It must run before any lookup in the same processing
// cycle so a lookup never consults a stale entry; making cleanup an
// explicit step keeps it deterministic and testable.
func (c *Cache) PurgeExpired(now time.Time) {
	cutoff := now.Add(-c.window)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, lastSeen := range c.entries {
		if lastSeen.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Lookup reports whether the key is resident and, on a hit, refreshes its
// last-seen time.
func (c *Cache) Lookup(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.entries[key] = now
	return true
}

// Insert records a successful verification of the key.
func (c *Cache) Insert(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = now
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
