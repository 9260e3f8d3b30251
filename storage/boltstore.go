package storage

import (
	"bytes"
	"fmt"

	"github.com/boltdb/bolt"
)

// BoltStore is an implementation of Store whose backend is a Bolt database.
type BoltStore bolt.DB

var (
	bucketName = []byte("values")
)

func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("could not ensure bucket %q exists: %w", bucketName, err)
		}
		return nil
	})
	return (*BoltStore)(db), err
}

// Put reads the previous value and writes the new one in the same read-write
// transaction, which Bolt runs one at a time.
func (s *BoltStore) Put(key []byte, value []byte) (previous []byte, replaced bool, err error) {
	err = (*bolt.DB)(s).Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if k, v := b.Cursor().Seek(key); bytes.Equal(k, key) {
			// Only valid for the life of the transaction.
			previous = dup(v)
			replaced = true
		}
		if err := b.Put(key, dup(value)); err != nil {
			return fmt.Errorf("could not put %.40q with %.40q: %w", key, value, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return previous, replaced, nil
}

func (s *BoltStore) Get(key []byte) (value []byte, err error) {
	err = (*bolt.DB)(s).View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(bucketName).Cursor().Seek(key)
		if !bytes.Equal(k, key) {
			return fmt.Errorf("%.40q: %w", key, ErrNotFound)
		}
		value = dup(v)
		return nil
	})
	return value, err
}

func (s *BoltStore) Size() (n int, err error) {
	err = (*bolt.DB)(s).View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return n, err
}
