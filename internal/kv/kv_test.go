package kv

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

// storeContract runs the behavior every Store implementation must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()

	// Absent key reads as nil without error.
	v, err := s.Get("missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if v != nil {
		t.Fatalf("missing key: got %q, want nil", v)
	}

	if err := s.Set("k", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = s.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(v, []byte("v1")) {
		t.Fatalf("get: got %q, want v1", v)
	}

	// Overwrite.
	if err := s.Set("k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _ = s.Get("k")
	if !bytes.Equal(v, []byte("v2")) {
		t.Fatalf("after overwrite: got %q, want v2", v)
	}

	// Remove, twice; the second is a no-op.
	if err := s.Remove("k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("k"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	v, _ = s.Get("k")
	if v != nil {
		t.Fatalf("after remove: got %q, want nil", v)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	storeContract(t, s)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("queue", []byte(`[{"kind":"add_item"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, err := s2.Get("queue")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !bytes.Equal(v, []byte(`[{"kind":"add_item"}]`)) {
		t.Fatalf("value lost across reopen: %q", v)
	}
}

// Queue and cache writes arrive from different goroutines through the same
// store; none may fail with a busy database.
func TestSQLiteConcurrentWriters(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	const writers, writes = 4, 25
	errs := make(chan error, writers*writes)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				key := fmt.Sprintf("w%d", w)
				if err := s.Set(key, []byte(fmt.Sprintf("v%d", i))); err != nil {
					errs <- err
					return
				}
				if _, err := s.Get(key); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent access: %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	orig := []byte("data")
	if err := s.Set("k", orig); err != nil {
		t.Fatalf("set: %v", err)
	}
	orig[0] = 'X'

	v, _ := s.Get("k")
	if !bytes.Equal(v, []byte("data")) {
		t.Error("stored value aliases caller's buffer")
	}
	v[0] = 'Y'
	v2, _ := s.Get("k")
	if !bytes.Equal(v2, []byte("data")) {
		t.Error("returned value aliases internal buffer")
	}
}
