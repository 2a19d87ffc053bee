// Package ttlcache provides a small process-local TTL cache for expensive
// provider lookups. Entries are owned by the cache and returned by value;
// the clock is injectable so expiry behavior is testable.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value       V
	lastUpdated time.Time
}

// Cache is a TTL-bound key/value store. A read within the TTL returns the
// stored value; the first read at or after expiry invokes the loader again.
// Loads run outside the lock, so concurrent misses on a cold key may each
// hit the loader - acceptable, the callers' writes are idempotent.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]entry[V]
}

// New creates a cache with the given TTL. A nil clock defaults to time.Now.
func New[K comparable, V any](ttl time.Duration, now func() time.Time) *Cache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[K]entry[V]),
	}
}

// GetOrLoad returns the cached value for key if it is still fresh, otherwise
// calls load, stores the result and returns it. Load errors are not cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.lastUpdated) < c.ttl {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, lastUpdated: c.now()}
	c.mu.Unlock()
	return v, nil
}

// Peek returns the cached value without loading, and whether it was fresh.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.lastUpdated) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops the entry for key, if any.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops all entries.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}
