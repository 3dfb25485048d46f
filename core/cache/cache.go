// Package cache provides the session-scoped memo used for chapter arrays and
// tafsir entries.
//
// Entries live as long as the owning session; there is no eviction. Loads are
// coalesced: concurrent GetOrLoad calls for the same key share a single load,
// and a failed load is never stored, so the next caller retries.
package cache

import (
	"context"
	"sync"
)

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Loads  int64 // load functions actually run
	Size   int
}

// call is an in-flight load shared by every waiter on the same key.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Memo is a thread-safe, non-evicting key/value cache with load coalescing.
type Memo[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]V
	inflight map[K]*call[V]
	stats    Stats
}

// NewMemo creates an empty Memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{
		entries:  make(map[K]V),
		inflight: make(map[K]*call[V]),
	}
}

// Get retrieves a value from the cache.
func (m *Memo[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[key]
	if ok {
		m.stats.Hits++
	} else {
		m.stats.Misses++
	}
	return v, ok
}

// Put stores a value, replacing any previous one.
func (m *Memo[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// GetOrLoad returns the cached value for key, or runs load once for all
// concurrent callers and caches its result when it succeeds. A waiter whose
// ctx ends before the load finishes returns ctx.Err(); the load itself keeps
// running for the remaining callers.
func (m *Memo[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	m.mu.Lock()
	if v, ok := m.entries[key]; ok {
		m.stats.Hits++
		m.mu.Unlock()
		return v, nil
	}
	m.stats.Misses++

	c, running := m.inflight[key]
	if !running {
		c = &call[V]{done: make(chan struct{})}
		m.inflight[key] = c
		m.stats.Loads++
	}
	m.mu.Unlock()

	if !running {
		// The leader's load is detached from its own cancellation so that
		// followers are not failed by the leader going away.
		go m.run(context.WithoutCancel(ctx), key, c, load)
	}

	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (m *Memo[K, V]) run(ctx context.Context, key K, c *call[V], load func(context.Context) (V, error)) {
	c.value, c.err = load(ctx)

	m.mu.Lock()
	if c.err == nil {
		m.entries[key] = c.value
	}
	delete(m.inflight, key)
	m.mu.Unlock()

	close(c.done)
}

// Len returns the number of cached entries.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Keys returns the cached keys in no particular order.
func (m *Memo[K, V]) Keys() []K {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]K, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns cache statistics.
func (m *Memo[K, V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = len(m.entries)
	return s
}
