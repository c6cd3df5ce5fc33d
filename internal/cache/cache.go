// Package cache provides a generic, mutex-guarded cache with per-entry TTL
// expiry and a maximum entry count evicted in least-recently-used order.
//
// Two process-wide instances back the rule engine: the statistics cache
// (bounds database load for frequently-evaluated statistical conditions at
// the cost of staleness up to the TTL) and the parse cache. Both are shared
// across concurrent event-processing passes, so every method is safe for
// concurrent use. Expired entries are dropped lazily on access and when the
// capacity sweep runs; there is no background janitor goroutine.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a TTL + LRU bounded cache keyed by string.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front = most recently used

	hits   prometheus.Counter
	misses prometheus.Counter

	now func() time.Time // test hook
}

// Option configures optional cache behavior.
type Option[V any] func(*Cache[V])

// WithMetrics registers hit/miss counters named <name>_cache_hits_total and
// <name>_cache_misses_total on reg. Registration failures panic, matching
// prometheus.MustRegister semantics; duplicate names are a wiring bug.
func WithMetrics[V any](reg prometheus.Registerer, name string) Option[V] {
	return func(c *Cache[V]) {
		c.hits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: name + "_cache_hits_total",
			Help: "Number of " + name + " cache hits.",
		})
		c.misses = prometheus.NewCounter(prometheus.CounterOpts{
			Name: name + "_cache_misses_total",
			Help: "Number of " + name + " cache misses.",
		})
		reg.MustRegister(c.hits, c.misses)
	}
}

// New creates a cache whose entries expire ttl after insertion, holding at
// most maxEntries entries (0 means unbounded).
func New[V any](ttl time.Duration, maxEntries int, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live value for key. Expired entries count as misses and
// are removed on the spot.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.now().After(ent.expiresAt) {
		c.removeLocked(el)
		c.miss()
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hit()
	return ent.value, true
}

// Set stores value under key, resetting its TTL. When the cache is full the
// least-recently-used entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
	c.items[key] = el

	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		if back := c.order.Back(); back != nil {
			c.removeLocked(back)
		}
	}
}

// Delete removes key if present, reporting whether it existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeLocked(el)
	}
	return ok
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	ent := el.Value.(*entry[V])
	delete(c.items, ent.key)
	c.order.Remove(el)
}

func (c *Cache[V]) hit() {
	if c.hits != nil {
		c.hits.Inc()
	}
}

func (c *Cache[V]) miss() {
	if c.misses != nil {
		c.misses.Inc()
	}
}
