package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)
	c.Set("a", "alpha")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](4, time.Minute, WithClock(clk.now))

	expires := c.Set("k", 1)
	assert.Equal(t, clk.t.Add(time.Minute), expires)

	clk.t = clk.t.Add(time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok, "an entry is live up to its expiry instant")

	clk.t = clk.t.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_TakeIsSingleUse(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)
	c.Set("token", "cat1")

	v, ok := c.Take("token")
	require.True(t, ok)
	assert.Equal(t, "cat1", v)

	_, ok = c.Take("token")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_CleanExpired(t *testing.T) {
	clk := &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](8, time.Minute, WithClock(clk.now))
	c.Set("old1", 1)
	c.Set("old2", 2)
	clk.t = clk.t.Add(45 * time.Second)
	c.Set("fresh", 3)
	clk.t = clk.t.Add(30 * time.Second)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())

	c.Delete("fresh")
	assert.Equal(t, 0, c.Size())
}
