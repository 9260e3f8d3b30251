package state_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nicolagi/pathkv/state"
	"github.com/nicolagi/pathkv/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShared(t *testing.T) {
	t.Run("updates are visible to views", func(t *testing.T) {
		shared := state.New(storage.NewInMemoryStore())
		require.Nil(t, shared.Update(func(s storage.Store) error {
			_, _, err := s.Put([]byte("name"), []byte("glenda"))
			return err
		}))
		var value []byte
		require.Nil(t, shared.View(func(s storage.Store) (err error) {
			value, err = s.Get([]byte("name"))
			return err
		}))
		assert.Equal(t, []byte("glenda"), value)
	})
	t.Run("callback errors are returned", func(t *testing.T) {
		shared := state.New(storage.NewInMemoryStore())
		err := shared.View(func(s storage.Store) error {
			_, err := s.Get([]byte("missing"))
			return err
		})
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
	t.Run("put during a view panics", func(t *testing.T) {
		shared := state.New(storage.NewInMemoryStore())
		assert.Panics(t, func() {
			_ = shared.View(func(s storage.Store) error {
				_, _, err := s.Put([]byte("k"), []byte("v"))
				return err
			})
		})
		// The read lock must have been released by the panic.
		n, err := shared.Size()
		require.Nil(t, err)
		assert.Zero(t, n)
	})
	t.Run("concurrent puts to one key never lose a previous value", func(t *testing.T) {
		shared := state.New(storage.NewInMemoryStore())
		const writers = 50
		previous := make(chan string, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := shared.Update(func(s storage.Store) error {
					p, replaced, err := s.Put([]byte("key"), []byte(fmt.Sprint(i)))
					if replaced {
						previous <- string(p)
					}
					return err
				})
				assert.Nil(t, err)
			}(i)
		}
		wg.Wait()
		close(previous)

		// Every value but the last one written is reported exactly once as
		// somebody's previous value.
		var final []byte
		require.Nil(t, shared.View(func(s storage.Store) (err error) {
			final, err = s.Get([]byte("key"))
			return err
		}))
		seen := map[string]bool{string(final): true}
		for p := range previous {
			assert.False(t, seen[p], "value %q replaced twice", p)
			seen[p] = true
		}
		assert.Len(t, seen, writers)
		n, err := shared.Size()
		require.Nil(t, err)
		assert.Equal(t, 1, n)
	})
	t.Run("concurrent views and updates", func(t *testing.T) {
		shared := state.New(storage.NewInMemoryStore())
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			key := []byte(fmt.Sprintf("key-%d", i))
			wg.Add(2)
			go func() {
				defer wg.Done()
				assert.Nil(t, shared.Update(func(s storage.Store) error {
					_, _, err := s.Put(key, key)
					return err
				}))
			}()
			go func() {
				defer wg.Done()
				err := shared.View(func(s storage.Store) error {
					value, err := s.Get(key)
					if err == nil && string(value) != string(key) {
						return fmt.Errorf("got %q, want %q", value, key)
					}
					if errors.Is(err, storage.ErrNotFound) {
						return nil
					}
					return err
				})
				assert.Nil(t, err)
			}()
		}
		wg.Wait()
		n, err := shared.Size()
		require.Nil(t, err)
		assert.Equal(t, 20, n)
	})
}
