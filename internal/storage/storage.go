// Package storage persists node state in a Pebble key-value store.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("storage: closed")

// Storage is a key-value store backed by Pebble. Writes skip the fsync and
// a background goroutine syncs the WAL periodically.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu       sync.RWMutex // mu is held shared by operations and exclusively by Close
	isClosed bool         // isClosed is set once Close has run
}

// Open opens or creates the store at path.
func Open(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// Set stores a key-value pair. Durability follows the sync loop.
func (s *Storage) Set(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return ErrClosed
	}

	return s.db.Set(key, value, pebble.NoSync)
}

// IteratePrefix calls fn for each pair whose key starts with prefix, in
// key order. Keys and values are only valid during the call.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound returns the exclusive upper bound of a prefix scan, or
// nil when the prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close stops the sync loop, flushes the WAL and closes the database.
// It waits for in-flight operations; operations after Close return ErrClosed.
func (s *Storage) Close() error {
	// The sync loop takes the read lock, so stop it first.
	s.stopOnce.Do(func() { close(s.stopSync) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return nil
	}
	s.isClosed = true

	if err := s.db.LogData(nil, pebble.Sync); err != nil {
		s.db.Close()
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isClosed {
		return ErrClosed
	}

	return s.db.LogData(nil, pebble.Sync)
}
