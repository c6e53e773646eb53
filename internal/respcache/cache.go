// SPDX-License-Identifier: MIT

// Package respcache holds the in-process TTL caches for assembled
// responses. Entries expire lazily on lookup; there is no background
// sweeper because key cardinality is bounded by locale count.
package respcache

import (
	"sync"
	"time"

	"github.com/filmgrid/catalogd/internal/metrics"
)

type entry[V any] struct {
	at  time.Time
	val V
}

// Cache is a mutex-guarded TTL map. The name labels cache metrics.
type Cache[K comparable, V any] struct {
	name    string
	ttl     time.Duration
	mu      sync.Mutex
	entries map[K]entry[V]

	now func() time.Time // overridable in tests
}

// New builds a cache with the given metrics name and entry lifetime.
func New[K comparable, V any](name string, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the live value for k. Expired entries are removed and count
// as a miss.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		metrics.CacheEvents.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}
	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, k)
		metrics.CacheEvents.WithLabelValues(c.name, "stale").Inc()
		var zero V
		return zero, false
	}
	metrics.CacheEvents.WithLabelValues(c.name, "hit").Inc()
	return e.val, true
}

// Peek returns the value for k even when expired, with its freshness. Used
// by callers that can serve stale data when a rebuild fails.
func (c *Cache[K, V]) Peek(k K) (V, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		var zero V
		return zero, false, false
	}
	fresh := c.now().Sub(e.at) < c.ttl
	return e.val, true, fresh
}

// Put stores v under k with a fresh timestamp.
func (c *Cache[K, V]) Put(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = entry[V]{at: c.now(), val: v}
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
