package grade

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gogpu/grade/backend"
	"github.com/gogpu/grade/cubelut"
)

const testCube = `TITLE "warm"
LUT_3D_SIZE 2
0.1 0.0 0.0
1.0 0.1 0.0
0.1 1.0 0.0
1.0 1.0 0.0
0.1 0.0 1.0
1.0 0.1 1.0
0.1 1.0 1.0
1.0 1.0 1.0
`

func writeCube(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "look.cube")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write cube: %v", err)
	}
	return path
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	b := backend.NewSoftware()
	t.Cleanup(func() { b.Close() })
	s, err := NewStore(b, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreStartsWithIdentity(t *testing.T) {
	s := newTestStore(t)
	tex := s.Current()
	if tex == nil {
		t.Fatal("no LUT published at startup")
	}
	if got := tex.Dimension(); got != IdentityDimension {
		t.Errorf("identity dimension = %d, want %d", got, IdentityDimension)
	}
	if got := s.CurrentPath(); got != "" {
		t.Errorf("identity path = %q, want empty", got)
	}
}

func TestStoreLoadPublishes(t *testing.T) {
	s := newTestStore(t)
	path := writeCube(t, testCube)
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Current().Dimension(); got != 2 {
		t.Errorf("dimension = %d, want 2", got)
	}
	if got := s.CurrentPath(); got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
}

func TestStoreLoadFailureKeepsActive(t *testing.T) {
	s := newTestStore(t)
	good := writeCube(t, testCube)
	if err := s.Load(good); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := s.Current()

	bad := writeCube(t, "LUT_3D_SIZE 2\n0.0 0.0\n")
	if err := s.Load(bad); err == nil {
		t.Fatal("Load accepted malformed cube")
	}
	if s.Current() != before {
		t.Error("failed load replaced the active LUT")
	}
	if got := s.CurrentPath(); got != good {
		t.Errorf("path = %q, want %q", got, good)
	}
}

func TestStoreClearRevertsToIdentity(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(writeCube(t, testCube)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := s.Current().Dimension(); got != IdentityDimension {
		t.Errorf("dimension after clear = %d, want %d", got, IdentityDimension)
	}
	if got := s.CurrentPath(); got != "" {
		t.Errorf("path after clear = %q, want empty", got)
	}
}

// Concurrent loads against readers must always observe a complete
// texture: never nil, never a partially built one.
func TestStoreConcurrentPublish(t *testing.T) {
	s := newTestStore(t)
	path := writeCube(t, testCube)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tex := s.Current()
				if tex == nil {
					t.Error("reader observed nil LUT")
					return
				}
				if d := tex.Dimension(); d != 2 && d != IdentityDimension {
					t.Errorf("reader observed dimension %d", d)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := s.Load(path); err != nil {
			t.Errorf("Load: %v", err)
		}
		if err := s.Clear(); err != nil {
			t.Errorf("Clear: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStoreLoadTable(t *testing.T) {
	s := newTestStore(t)
	if err := s.LoadTable(cubelut.Identity(4), "synthetic"); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if got := s.Current().Dimension(); got != 4 {
		t.Errorf("dimension = %d, want 4", got)
	}
	if got := s.CurrentPath(); got != "synthetic" {
		t.Errorf("path = %q, want synthetic", got)
	}
}

func TestStoreClosedRejectsPublish(t *testing.T) {
	b := backend.NewSoftware()
	defer b.Close()
	s, err := NewStore(b, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Clear(); err == nil {
		t.Error("Clear succeeded on closed store")
	}
}
