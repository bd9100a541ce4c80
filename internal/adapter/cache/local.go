// Package cache provides the gateway's response-cache backends: a
// distributed Redis cache and a bounded in-process fallback.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// DefaultLocalMaxEntries bounds the in-process cache.
const DefaultLocalMaxEntries = 1000

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is a capacity-bounded in-process KVCache. On insert overflow the
// earliest-expiring entry is evicted. It is the fallback when no Redis URL
// is configured.
type Local struct {
	mu         sync.RWMutex
	maxEntries int
	m          map[string]localEntry
	hits       atomic.Int64
	misses     atomic.Int64
	now        func() time.Time
}

// NewLocal returns a Local cache bounded to maxEntries (DefaultLocalMaxEntries
// when non-positive).
func NewLocal(maxEntries int) *Local {
	if maxEntries <= 0 {
		maxEntries = DefaultLocalMaxEntries
	}
	return &Local{maxEntries: maxEntries, m: make(map[string]localEntry), now: time.Now}
}

// Get returns the cached value when present and unexpired.
func (c *Local) Get(_ domain.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		c.misses.Add(1)
		if ok {
			c.mu.Lock()
			delete(c.m, key)
			c.mu.Unlock()
		}
		return nil, false, nil
	}
	c.hits.Add(1)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores value under key for ttl, evicting the earliest-expiring entry
// when the cache is full.
func (c *Local) Set(_ domain.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && len(c.m) >= c.maxEntries {
		c.evictEarliestLocked()
	}
	c.m[key] = localEntry{value: cp, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *Local) evictEarliestLocked() {
	var victim string
	var earliest time.Time
	for k, e := range c.m {
		if victim == "" || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.m, victim)
	}
}

// Clear drops all entries.
func (c *Local) Clear(_ domain.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]localEntry)
	return nil
}

// Stats reports entry count and hit/miss counters.
func (c *Local) Stats(_ domain.Context) (domain.CacheStats, error) {
	c.mu.RLock()
	entries := len(c.m)
	c.mu.RUnlock()
	return domain.CacheStats{
		Backend: "local",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}
