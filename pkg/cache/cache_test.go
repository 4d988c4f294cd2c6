package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", entry{Symbol: "A", Value: 50}, time.Minute))

	var got entry
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, entry{Symbol: "A", Value: 50}, got)

	var raw string
	require.NoError(t, mc.Get(ctx, "k", &raw))
	assert.JSONEq(t, `{"symbol":"A","value":50}`, raw)

	ok, err := mc.Exists(ctx, "missing", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "k"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	mc := NewMemoryCache()
	defer mc.Close()
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	mc := NewMemoryCache(WithMaxSize(2))
	defer mc.Close()
	mc.now = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s)) // b is now oldest
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Get(ctx, "c", &s))

	// Overwriting an existing key does not evict.
	require.NoError(t, mc.Set(ctx, "c", "4", 0))
	require.NoError(t, mc.Get(ctx, "a", &s))
}

func TestLayeredCache(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, WithMaxSize(10))
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "k", entry{Symbol: "A"}, time.Minute))
	ok, err := l2.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "write-through to L2")

	// Populated only in L2: Get falls through and refills L1.
	require.NoError(t, l2.Set(ctx, "only-l2", entry{Symbol: "B"}, time.Minute))
	var got entry
	require.NoError(t, lc.Get(ctx, "only-l2", &got))
	assert.Equal(t, "B", got.Symbol)
	assert.Equal(t, 2, lc.memCache.Len())

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestHashKey(t *testing.T) {
	a := HashKey("A", "linear", "1,2,3")
	assert.Equal(t, a, HashKey("A", "linear", "1,2,3"))
	assert.NotEqual(t, a, HashKey("A", "linear,1,2,3"))
	assert.Equal(t, "forecast:"+a, GenerateKey("forecast", a))
}
