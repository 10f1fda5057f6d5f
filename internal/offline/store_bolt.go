package offline

import (
	"context"
	"errors"
	"strings"

	"github.com/vendorr/vendorr-edge/pkg/storage/bolt"
)

const (
	generationBucketPrefix = "gen:"
	metaBucket             = "cache-meta"
	activeKey              = "active"
)

type boltKV interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Buckets(prefix string) ([]string, error)
	DropBucket(bucket string) error
}

// BoltStore keeps each generation in its own bucket of the embedded database.
type BoltStore struct {
	kv boltKV
}

func NewBoltStore(kv boltKV) *BoltStore {
	return &BoltStore{kv: kv}
}

func (s *BoltStore) Put(_ context.Context, generation, key string, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.kv.Put(generationBucketPrefix+generation, key, data)
}

func (s *BoltStore) Match(_ context.Context, generation, key string) (Entry, error) {
	data, err := s.kv.Get(generationBucketPrefix+generation, key)
	if errors.Is(err, bolt.ErrNotFound) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(data)
}

func (s *BoltStore) Generations(context.Context) ([]string, error) {
	buckets, err := s.kv.Buckets(generationBucketPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(buckets))
	for _, name := range buckets {
		out = append(out, strings.TrimPrefix(name, generationBucketPrefix))
	}
	return out, nil
}

func (s *BoltStore) DropGeneration(_ context.Context, generation string) error {
	return s.kv.DropBucket(generationBucketPrefix + generation)
}

func (s *BoltStore) SetActive(_ context.Context, generation string) error {
	return s.kv.Put(metaBucket, activeKey, []byte(generation))
}

func (s *BoltStore) Active(context.Context) (string, error) {
	data, err := s.kv.Get(metaBucket, activeKey)
	if errors.Is(err, bolt.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
