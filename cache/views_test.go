// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestViews_GetOrCreate(t *testing.T) {
	created := 0
	c := NewViews[int](4, nil)

	v, err := c.GetOrCreate(1, func() (int, error) { created++; return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("GetOrCreate() = %d, %v", v, err)
	}
	v, err = c.GetOrCreate(1, func() (int, error) { created++; return 0, nil })
	if err != nil || v != 42 {
		t.Fatalf("second GetOrCreate() = %d, %v", v, err)
	}
	if created != 1 {
		t.Errorf("create ran %d times, want 1", created)
	}

	hits, misses, _ := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestViews_CreateErrorNotCached(t *testing.T) {
	c := NewViews[int](4, nil)
	boom := errors.New("boom")

	if _, err := c.GetOrCreate(7, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed create", c.Len())
	}
	// A later successful create still works.
	v, err := c.GetOrCreate(7, func() (int, error) { return 9, nil })
	if err != nil || v != 9 {
		t.Fatalf("retry = %d, %v", v, err)
	}
}

func TestViews_EvictionReleasesOldest(t *testing.T) {
	var released []int
	c := NewViews[int](2, func(v int) { released = append(released, v) })

	// All keys land in one shard when they share low bits.
	keys := []uint64{16, 32, 48}
	for i, k := range keys {
		if _, err := c.GetOrCreate(k, func() (int, error) { return i, nil }); err != nil {
			t.Fatal(err)
		}
	}

	if len(released) != 1 || released[0] != 0 {
		t.Errorf("released = %v, want [0]", released)
	}
	_, _, evictions := c.Stats()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestViews_FlushReleasesAll(t *testing.T) {
	var released atomic.Int32
	c := NewViews[int](8, func(int) { released.Add(1) })

	for i := uint64(0); i < 20; i++ {
		if _, err := c.GetOrCreate(i, func() (int, error) { return int(i), nil }); err != nil {
			t.Fatal(err)
		}
	}
	c.Flush()

	if got := released.Load(); got != 20 {
		t.Errorf("released %d views, want 20", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Flush", c.Len())
	}
}

func TestViews_ConcurrentAccess(t *testing.T) {
	c := NewViews[uint64](16, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := uint64(i % 64)
				v, err := c.GetOrCreate(key, func() (uint64, error) { return key, nil })
				if err != nil {
					t.Errorf("GetOrCreate: %v", err)
					return
				}
				if v != key {
					t.Errorf("value %d for key %d", v, key)
					return
				}
				if i%100 == 0 {
					c.Flush()
				}
			}
		}()
	}
	wg.Wait()
}
