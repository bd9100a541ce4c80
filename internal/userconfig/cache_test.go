package userconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache(time.Minute)
	_, ok := c.Get("1")
	assert.False(t, ok)

	c.Put(domain.UserConfig{UserID: "1", Name: "kim"})
	got, ok := c.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "kim", got.Name)
	assert.Equal(t, 1, c.Len())
}

func TestCacheTTL(t *testing.T) {
	c := NewCache(time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put(domain.UserConfig{UserID: "1"})

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok := c.Get("1")
	assert.False(t, ok, "entry older than TTL must not be served")
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put(domain.UserConfig{UserID: "1"})
	c.Invalidate("1")
	_, ok := c.Get("1")
	assert.False(t, ok)
}

func TestCacheDefaultTTL(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
