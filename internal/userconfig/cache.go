// Package userconfig binds per-user personalization to request-scoped work.
//
// It layers an in-process snapshot cache over the durable store and exposes
// the service consumed by the user worker's HTTP API and by every analysis
// worker's rebind step.
package userconfig

import (
	"sync"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// DefaultTTL bounds staleness when another process mutates a profile.
const DefaultTTL = 300 * time.Second

type cacheEntry struct {
	snapshot domain.UserConfig
	loadedAt time.Time
}

// Cache is a read-biased snapshot cache keyed by user id. Every mutating
// operation must Invalidate the key; cross-process staleness is bounded by
// the TTL.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]cacheEntry
	now func() time.Time
}

// NewCache returns a Cache with the given TTL (DefaultTTL when
// non-positive).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, m: make(map[string]cacheEntry), now: time.Now}
}

// Get returns a cached snapshot when present and fresh.
func (c *Cache) Get(userID string) (domain.UserConfig, bool) {
	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.loadedAt) > c.ttl {
		return domain.UserConfig{}, false
	}
	return e.snapshot, true
}

// Put stores a snapshot.
func (c *Cache) Put(cfg domain.UserConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cfg.UserID] = cacheEntry{snapshot: cfg, loadedAt: c.now()}
}

// Invalidate removes a user's snapshot.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
