// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache provides the shared texture-view cache used by texture
// binders. Views are keyed by plane identity (a uint64 derived from the
// plane's memory address and bind kind) and evicted LRU per shard. The
// whole cache is flushed when the incoming frame format changes, since
// views cached for a different geometry are invalid.
package cache

import (
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// shardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	shardCount = 16

	// DefaultCapacity is the default maximum entries per shard. A frame
	// has at most two planes, so even with capture recycling dozens of
	// buffers the cache stays small.
	DefaultCapacity = 32

	shardMask = shardCount - 1
)

// Views is a thread-safe sharded LRU cache of texture views. The
// release callback runs for every value that leaves the cache, whether
// by eviction, replacement, or Flush, so backends can free the
// underlying GPU handle exactly once.
type Views[V any] struct {
	shards   [shardCount]*viewShard[V]
	release  func(V)
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type viewShard[V any] struct {
	mu      sync.Mutex
	entries map[uint64]*viewEntry[V]
	// Intrusive LRU list; head is most recent.
	head, tail *viewEntry[V]
}

type viewEntry[V any] struct {
	key        uint64
	value      V
	prev, next *viewEntry[V]
}

// NewViews creates a view cache with the given per-shard capacity.
// release may be nil when values need no cleanup; capacity <= 0 selects
// DefaultCapacity.
func NewViews[V any](capacity int, release func(V)) *Views[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Views[V]{release: release, capacity: capacity}
	for i := range c.shards {
		c.shards[i] = &viewShard[V]{entries: make(map[uint64]*viewEntry[V])}
	}
	return c
}

// shard selects the shard for a key. Plane identity keys are already
// well-mixed addresses, so the key itself serves as the hash.
func (c *Views[V]) shard(key uint64) *viewShard[V] {
	return c.shards[key&shardMask]
}

// GetOrCreate returns the cached view for key, creating it with create
// on a miss. create runs with the shard lock held, preventing duplicate
// views for the same plane from concurrent lookups. A create error is
// returned without caching anything.
func (c *Views[V]) GetOrCreate(key uint64, create func() (V, error)) (V, error) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.moveToFront(e)
		c.hits.Add(1)
		return e.value, nil
	}
	c.misses.Add(1)

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}

	for len(s.entries) >= c.capacity {
		oldest := s.tail
		if oldest == nil {
			break
		}
		s.remove(oldest)
		delete(s.entries, oldest.key)
		c.evictions.Add(1)
		if c.release != nil {
			c.release(oldest.value)
		}
	}

	e := &viewEntry[V]{key: key, value: value}
	s.pushFront(e)
	s.entries[key] = e
	return value, nil
}

// Flush releases every cached view. Called on format transitions.
func (c *Views[V]) Flush() {
	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			delete(s.entries, key)
			if c.release != nil {
				c.release(e.value)
			}
		}
		s.head, s.tail = nil, nil
		s.mu.Unlock()
	}
}

// Len returns the total number of cached views.
func (c *Views[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns hit, miss, and eviction counters.
func (c *Views[V]) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func (s *viewShard[V]) pushFront(e *viewEntry[V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *viewShard[V]) remove(e *viewEntry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (s *viewShard[V]) moveToFront(e *viewEntry[V]) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}
