// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"fmt"
	"sync"
)

// Factory creates a new backend instance, returning an error when the
// backend cannot run on this system (no GPU device, missing driver).
type Factory func() (Backend, error)

// registry holds registered backend factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for automatic selection (first constructible wins).
	priority = []string{NameWGPU, NameSoftware}
)

// Register registers a backend factory under the given name. Typically
// called from init() in backend packages; a duplicate name replaces the
// previous registration.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// New constructs a backend by name.
func New(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, name)
	}
	return factory()
}

// Default constructs the best available backend: wgpu when a device can
// be opened, otherwise software. An error here means the pipeline cannot
// be built at all; per the pipeline's error taxonomy this is the only
// fatal class, and the caller decides whether to terminate.
func Default() (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var firstErr error
	for _, name := range priority {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		b, err := factory()
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNotAvailable
}
