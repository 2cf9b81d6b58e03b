package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	c := New[string](4, time.Minute)

	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestPutGet(t *testing.T) {
	c := New[string](4, time.Minute)

	c.Put("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)
}

func TestTTLExpiry(t *testing.T) {
	c := New[int](4, 10*time.Millisecond)

	c.Put("a", 1)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)

	// Expired entries drop from the entry count.
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New[int](4, 0)

	c.Put("a", 1)
	time.Sleep(5 * time.Millisecond)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUEviction(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestPutOverwriteKeepsCapacity(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Put("a", 1)
	c.Put("a", 2)
	c.Put("b", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New[int](4, time.Minute)

	c.Put("a", 1)
	c.Invalidate("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	c := New[int](4, time.Minute)

	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 4, st.MaxEntries)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 2.0/3.0, st.HitRate, 1e-9)
}
