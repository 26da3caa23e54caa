// Package cache provides a time-bounded store for idempotent read results.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 1024

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a key/value store whose entries expire a fixed TTL after they were
// written. Expired entries are evicted lazily, on the next access to the key.
// The backing store is size bounded, least recently used keys go first.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	store *lru.Cache[string, entry[V]]
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New returns a cache holding up to maxEntries values for ttl each.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	// lru.New only fails on a non-positive size.
	store, _ := lru.New[string, entry[V]](maxEntries)
	return &Cache[V]{
		ttl:   ttl,
		now:   o.now,
		store: store,
	}
}

// TTL returns the freshness window of the cache.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is still fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.store.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous value.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.store.Add(key, entry[V]{value: value, storedAt: c.now()})
	c.mu.Unlock()
}

// Remove drops key from the cache.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	c.store.Remove(key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.store.Purge()
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}
