package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(0, time.Minute)

	c.Set("contract:42", "payload", 10*time.Second)

	v, ok := c.Get("contract:42")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c := New(0, time.Minute)

	_, ok := c.Get("contract:missing")
	assert.False(t, ok)
}

func TestLazyExpiry(t *testing.T) {
	c := New(0, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("erp:products", []string{"A1"}, 30*time.Second)

	_, ok := c.Get("erp:products")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("erp:products")
	assert.False(t, ok, "expired entry must report a miss")
}

func TestOverwriteRefreshesEntry(t *testing.T) {
	c := New(0, time.Minute)

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestDefaultTTLApplied(t *testing.T) {
	c := New(0, 20*time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", "v", 0)

	now = now.Add(19 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestEvictsExpiredWhenFull(t *testing.T) {
	c := New(2, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("stale", "v", time.Second)
	c.Set("fresh", "v", time.Hour)

	now = now.Add(2 * time.Second)
	c.Set("incoming", "v", time.Hour)

	_, ok := c.Get("stale")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
	_, ok = c.Get("incoming")
	assert.True(t, ok)
}

func TestEvictsNearestExpiryWhenNoneExpired(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("short", "v", time.Minute)
	c.Set("long", "v", time.Hour)
	c.Set("incoming", "v", time.Hour)

	_, ok := c.Get("short")
	assert.False(t, ok, "entry closest to expiry should be evicted")
	_, ok = c.Get("long")
	assert.True(t, ok)
	_, ok = c.Get("incoming")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}
