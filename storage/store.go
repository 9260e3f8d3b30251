package storage

import (
	"errors"
)

// Store represents a key-value store.
type Store interface {
	// Put stores value at key and returns the value that was there before,
	// with replaced set to false if the key was unset. Implementations must
	// make the read of the previous value and the write of the new one a
	// single atomic step.
	Put(key, value []byte) (previous []byte, replaced bool, err error)

	// Get should return ErrNotFound if the key is not in the store.
	Get(key []byte) (value []byte, err error)

	// Size returns the number of distinct keys in the store.
	Size() (int, error)
}

var (
	// ErrNotFound indicates a key is not in the store.
	ErrNotFound = errors.New("not found")
)

func dup(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
