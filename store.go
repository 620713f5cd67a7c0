package grade

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/cubelut"
)

// IdentityDimension is the cube size of the default identity LUT.
const IdentityDimension = 32

// publishedLUT pairs a built texture with its source for state
// persistence and introspection.
type publishedLUT struct {
	tex  backend.LUTTexture
	path string // empty for the identity LUT
}

// Store owns the published LUT texture. Parsing and texture building
// happen on the caller's goroutine; only the final pointer swap touches
// the render path, so a slow LUT load never stalls presentation.
//
// Exactly one texture is published at any time. A failed load leaves
// the previous texture in place.
type Store struct {
	backend backend.Backend
	log     *slog.Logger

	// mu serializes builders so two concurrent Loads cannot race the
	// retire bookkeeping. Readers never take it.
	mu      sync.Mutex
	active  atomic.Pointer[publishedLUT]
	retired backend.LUTTexture
	closed  bool
}

// NewStore creates a store with the identity LUT published.
func NewStore(b backend.Backend, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = newNopLogger()
	}
	s := &Store{backend: b, log: log}
	tex, err := b.BuildLUT(cubelut.Identity(IdentityDimension))
	if err != nil {
		return nil, fmt.Errorf("grade: build identity LUT: %w", err)
	}
	s.active.Store(&publishedLUT{tex: tex})
	return s, nil
}

// Current returns the published LUT texture. Safe to call from the
// render loop at any time; the result is valid for at least one
// publication generation.
func (s *Store) Current() backend.LUTTexture {
	p := s.active.Load()
	if p == nil {
		return nil
	}
	return p.tex
}

// CurrentPath returns the source path of the published LUT, or the
// empty string for the identity LUT.
func (s *Store) CurrentPath() string {
	p := s.active.Load()
	if p == nil {
		return ""
	}
	return p.path
}

// Load parses the .cube file at path, builds the texture and publishes
// it. On any error the previously published LUT stays active.
func (s *Store) Load(path string) error {
	table, err := cubelut.ParseFile(path)
	if err != nil {
		return fmt.Errorf("grade: load LUT: %w", err)
	}
	return s.publish(table, path)
}

// LoadTable builds and publishes an already parsed table. src is
// recorded as the source path and may be empty.
func (s *Store) LoadTable(table cubelut.Table, src string) error {
	return s.publish(table, src)
}

// Clear replaces the published LUT with the identity.
func (s *Store) Clear() error {
	return s.publish(cubelut.Identity(IdentityDimension), "")
}

// publish builds the texture off the render path and swaps it in. The
// texture it replaces is retired rather than released immediately: a
// dispatch that picked up the old pointer just before the swap may
// still be sampling it. Retired textures are released one publication
// later, long after any such dispatch has fenced.
func (s *Store) publish(table cubelut.Table, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return backend.ErrClosed
	}

	tex, err := s.backend.BuildLUT(table)
	if err != nil {
		return fmt.Errorf("grade: build LUT: %w", err)
	}

	prev := s.active.Swap(&publishedLUT{tex: tex, path: src})
	if s.retired != nil {
		s.retired.Release()
	}
	if prev != nil {
		s.retired = prev.tex
	}
	s.log.Info("grade: LUT published",
		slog.String("source", src),
		slog.Int("dimension", table.Size))
	return nil
}

// Close releases the published and retired textures.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.retired != nil {
		s.retired.Release()
		s.retired = nil
	}
	if p := s.active.Swap(nil); p != nil {
		p.tex.Release()
	}
	return nil
}
