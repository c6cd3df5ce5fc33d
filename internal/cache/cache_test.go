package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New[int](time.Minute, 0)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	current := time.Unix(1000, 0)
	c := New[string](time.Minute, 0)
	c.now = func() time.Time { return current }

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	current = current.Add(59 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "entry should survive inside the TTL")

	current = current.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire past the TTL")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")

	// Set resets the TTL
	c.Set("k", "v2")
	current = current.Add(30 * time.Second)
	c.Set("k", "v3")
	current = current.Add(45 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok, "rewrite should have reset the clock")
	assert.Equal(t, "v3", v)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](time.Hour, 3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch a so b becomes least recently used
	c.Get("a")
	c.Set("d", 4)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %s should survive", key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_DeleteAndPurge(t *testing.T) {
	c := New[int](time.Hour, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New[int](time.Hour, 0, WithMetrics[int](reg, "stats"))

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	got := make(map[string]float64)
	for _, fam := range families {
		got[fam.GetName()] = fam.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, float64(2), got["stats_cache_hits_total"])
	assert.Equal(t, float64(1), got["stats_cache_misses_total"])
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 128)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, g)
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
}
