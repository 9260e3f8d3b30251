package storage

import (
	"crypto/sha512"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore implements Store with one file per key below a directory.
type DiskStore struct {
	dir string

	// Serializes puts, so reading the previous value and writing the new one
	// happen as a unit.
	mu sync.Mutex
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (s *DiskStore) Put(key, value []byte) (previous []byte, replaced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	valpath := s.pathFor(key)
	previous, err = ioutil.ReadFile(valpath)
	switch {
	case err == nil:
		replaced = true
		if previous == nil {
			previous = []byte{}
		}
	case os.IsNotExist(err):
		previous = nil
	default:
		return nil, false, fmt.Errorf("could not read %q: %w", valpath, err)
	}
	if err = s.write(valpath, value); err != nil {
		return nil, false, err
	}
	return previous, replaced, nil
}

// write goes through a temporary file and a rename so that readers never see
// a partially written value.
func (s *DiskStore) write(valpath string, value []byte) error {
	dir := filepath.Dir(valpath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not make dir for %q: %w", valpath, err)
	}
	f, err := ioutil.TempFile(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("could not create temporary file for %q: %w", valpath, err)
	}
	tmp := f.Name()
	_, err = f.Write(value)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, valpath)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("could not write %q: %w", valpath, err)
	}
	return nil
}

func (s *DiskStore) Get(key []byte) (value []byte, err error) {
	value, err = ioutil.ReadFile(s.pathFor(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%x: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Size counts value files. Temporary files left by a crash are skipped.
func (s *DiskStore) Size() (int, error) {
	var n int
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return filepath.SkipDir
			}
			return err
		}
		if info.Mode().IsRegular() && info.Name()[0] != '.' {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not count values in %q: %w", s.dir, err)
	}
	return n, nil
}

func (s *DiskStore) pathFor(key []byte) string {
	// Prevent ENAMETOOLONG, while retaining low probability of clashes.
	if len(key) > sha512.Size {
		hash := sha512.Sum512(key)
		key = hash[:]
	}
	hex := fmt.Sprintf("%02x", key)
	shard := hex
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(s.dir, shard, hex)
}
