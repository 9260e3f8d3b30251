package storage

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Paired implements Store wrapping a pair of stores, one fast, one slow. The
// slow store is authoritative: puts go to it first, and it is the one that
// says what value a put replaced. The fast store is a cache in front of it,
// written through on puts and filled on gets that miss it.
type Paired struct {
	slow Store

	// Gets fill the fast store, and gets may run concurrently.
	mu   sync.Mutex
	fast Store
}

func NewPaired(fast, slow Store) *Paired {
	return &Paired{
		fast: fast,
		slow: slow,
	}
}

func (s *Paired) Get(key []byte) (value []byte, err error) {
	s.mu.Lock()
	value, err = s.fast.Get(key)
	s.mu.Unlock()
	if err == nil {
		return
	}
	if !errors.Is(err, ErrNotFound) {
		return
	}
	value, err = s.slow.Get(key)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{
		"key": fmt.Sprintf("%.10x", key),
	})
	s.mu.Lock()
	_, _, ferr := s.fast.Put(key, value)
	s.mu.Unlock()
	if ferr != nil {
		logger.WithField("err", ferr).Warn("Could not propagate from slow to fast")
	} else {
		logger.Debug("Propagated from slow to fast")
	}
	return value, nil
}

func (s *Paired) Put(key, value []byte) (previous []byte, replaced bool, err error) {
	previous, replaced, err = s.slow.Put(key, value)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.fast.Put(key, value); err != nil {
		// A stale cached value would be served from now on; the caller has to
		// know.
		return nil, false, fmt.Errorf("%.10x: stored in slow store only: %w", key, err)
	}
	return previous, replaced, nil
}

// Size asks the slow store; the fast one may hold only part of the keys.
func (s *Paired) Size() (int, error) {
	return s.slow.Size()
}
