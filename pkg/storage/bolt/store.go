// Package bolt provides the embedded single-file key/value store used when the
// edge runs without a shared Redis. Values are opaque byte slices grouped in
// named buckets; buckets are created on first write.
package bolt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
)

// ErrNotFound is returned when a key or bucket does not exist.
var ErrNotFound = errors.New("bolt: key not found")

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("bolt path is required")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt file %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value under key, creating the bucket when needed.
func (s *Store) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(bucket, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid for the life of the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes key. Missing keys and buckets are not an error.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Buckets lists bucket names starting with prefix.
func (s *Store) Buckets(prefix string) ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if strings.HasPrefix(string(name), prefix) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DropBucket deletes a bucket and everything in it.
func (s *Store) DropBucket(bucket string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(bucket))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
