// Package search serves typeahead profile search backed by the upstream
// network API, with a short-lived result cache.
package search

import (
	"strings"
	"sync"
	"time"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// Cache is a TTL cache for search results, injected into the Service by
// whoever constructs it. There is no package-level singleton.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	profiles []model.Profile
	storedAt time.Time
}

// NewCache creates a cache holding at most maxEntries query results for ttl.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached result for a query, if present and fresh.
func (c *Cache) Get(query string) ([]model.Profile, bool) {
	key := cacheKey(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.profiles, true
}

// Put stores a query result. When the cache is full, expired entries are
// evicted first; if none are expired the oldest entry goes.
func (c *Cache) Put(query string, profiles []model.Profile) {
	key := cacheKey(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{profiles: profiles, storedAt: c.now()}
}

// Len reports the number of cached queries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			continue
		}
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, first = k, e.storedAt, false
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// cacheKey folds case so "Alice" and "alice" hit the same entry. Search
// queries are display text, unlike counterpart keys which match exactly.
func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
