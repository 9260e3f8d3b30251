// Package state holds the one store a server process serves, and hands out
// access to it.
//
// Any number of read-only accesses may run together. A mutable access
// excludes every other access, read-only or mutable, for as long as it is
// outstanding. Callbacks receive the store for the duration of the call only;
// keeping it around afterwards, or asking for another access from inside an
// Update callback, is a programming error (the latter deadlocks).
package state

import (
	"sync"

	"github.com/nicolagi/pathkv/storage"
)

// Shared owns a single storage.Store. It must not be copied after first use;
// pass it around by pointer so that every request sees the same store.
type Shared struct {
	mu    sync.RWMutex
	store storage.Store
}

func New(store storage.Store) *Shared {
	return &Shared{store: store}
}

// View runs fn with read-only access to the store.
func (s *Shared) View(fn func(storage.Store) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(readOnly{s.store})
}

// Update runs fn with exclusive, mutable access to the store.
func (s *Shared) Update(fn func(storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.store)
}

// Size returns the number of keys in the store.
func (s *Shared) Size() (n int, err error) {
	err = s.View(func(store storage.Store) error {
		n, err = store.Size()
		return err
	})
	return n, err
}

// readOnly is what View callbacks get. Putting through it is a bug in the
// caller, not something to recover from.
type readOnly struct {
	storage.Store
}

func (readOnly) Put([]byte, []byte) ([]byte, bool, error) {
	panic("state: Put called during a read-only access")
}
