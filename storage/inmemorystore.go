package storage

import (
	"fmt"
)

// InMemoryStore is a Store implementation powered by a map. It is the default
// backend of the server. It does no locking of its own; concurrent callers
// must go through a state.Shared.
type InMemoryStore struct {
	m map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		m: make(map[string][]byte),
	}
}

func (s *InMemoryStore) Put(key, value []byte) (previous []byte, replaced bool, err error) {
	k := string(key)
	previous, replaced = s.m[k]
	s.m[k] = dup(value)
	return previous, replaced, nil
}

func (s *InMemoryStore) Get(key []byte) (value []byte, err error) {
	value, ok := s.m[string(key)]
	if !ok {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	return dup(value), nil
}

func (s *InMemoryStore) Size() (int, error) {
	return len(s.m), nil
}
