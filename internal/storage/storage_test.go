package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStorage opens a store in a temporary directory.
func newTestStorage(t *testing.T) (*Storage, string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	path := filepath.Join(dir, "db")

	s, err := Open(path)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to open storage: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(dir)
	}

	return s, path, cleanup
}

// lookup returns the value stored under key, or nil if absent.
func lookup(t *testing.T, s *Storage, key string) []byte {
	t.Helper()

	var got []byte
	err := s.IteratePrefix([]byte(key), func(k, v []byte) error {
		if string(k) == key {
			got = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	return got
}

func TestSetAndLookup(t *testing.T) {
	s, _, cleanup := newTestStorage(t)
	defer cleanup()

	if err := s.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := lookup(t, s, "k"); !bytes.Equal(got, []byte("v")) {
		t.Errorf("lookup returned %q, want %q", got, "v")
	}

	if got := lookup(t, s, "missing"); got != nil {
		t.Errorf("lookup returned %q, want nil", got)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	s, _, cleanup := newTestStorage(t)
	defer cleanup()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Set([]byte("k"), []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close returned %v, want ErrClosed", err)
	}

	err := s.IteratePrefix([]byte("k"), func(k, v []byte) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("IteratePrefix after Close returned %v, want ErrClosed", err)
	}

	if err := s.sync(); !errors.Is(err, ErrClosed) {
		t.Errorf("sync after Close returned %v, want ErrClosed", err)
	}
}

func TestIteratePrefix(t *testing.T) {
	s, _, cleanup := newTestStorage(t)
	defer cleanup()

	for _, k := range []string{"a:2", "a:1", "b:1", "a:3"} {
		if err := s.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	var keys []string
	err := s.IteratePrefix([]byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	want := []string{"a:1", "a:2", "a:3"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		in, want []byte
	}{
		{[]byte("b:"), []byte("b;")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, tt := range tests {
		if got := prefixUpperBound(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestPersistAcrossReopen(t *testing.T) {
	s, path, cleanup := newTestStorage(t)
	defer cleanup()

	s.Set([]byte("durable"), []byte("yes"))

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if got := lookup(t, reopened, "durable"); !bytes.Equal(got, []byte("yes")) {
		t.Errorf("after reopen lookup = %q, want %q", got, "yes")
	}
}

func TestCloseTwice(t *testing.T) {
	s, _, cleanup := newTestStorage(t)
	defer cleanup()

	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
