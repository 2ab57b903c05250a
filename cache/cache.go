// Package cache memoizes computed analytics responses for a short TTL.
// It is advisory only: losing an entry never changes correctness, just the
// latency and database load of the next request.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL store keyed by opaque strings (the handlers use
// quiz id + view type + hour bucket). The clock is injectable for tests.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Key builds the canonical cache key for one analytics result.
func Key(quizID, view, bucket string) string {
	return quizID + "|" + view + "|" + bucket
}

// Get returns the stored bytes iff the entry exists and has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Put overwrites any existing entry for key and sets a fresh expiry. Expired
// entries are swept on the way, keeping the map bounded by active keys.
func (c *Cache) Put(key string, data []byte, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{data: data, expiresAt: now.Add(ttl)}
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
