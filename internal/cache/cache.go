// Package cache memoizes computed display payloads for a fixed
// time-to-live.
package cache

import (
	"sync"
	"time"
)

// Cache is a keyed TTL memo. It is the only mutable structure shared
// across requests, so every access path takes the one mutex; request
// volume from an e-ink device does not justify anything finer.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// New returns an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key when it is younger
// than ttl; otherwise it runs compute, stores the result and returns
// it. The boolean reports whether this was a cache hit. A compute
// error is returned as-is and nothing is stored.
func (c *Cache[K, V]) GetOrCompute(key K, ttl time.Duration, compute func() (V, error)) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.createdAt) <= ttl {
		return e.value, true, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.entries[key] = entry[V]{value: value, createdAt: c.now()}
	return value, false, nil
}

// Clear unconditionally drops every entry and reports how many were
// held. Clearing an empty cache is a no-op, never an error.
func (c *Cache[K, V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[K]entry[V])
	return n
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
