package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltBackend keeps each namespace in its own bucket of one bbolt file.
type BoltBackend struct {
	db *bbolt.DB
}

func OpenBolt(dbPath string) (*BoltBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt at %s: %w", dbPath, err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Store(namespace string) (Store, error) {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(namespace))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", namespace, err)
	}
	return &BoltStore{db: b.db, bucket: []byte(namespace)}, nil
}

func (b *BoltBackend) Close() error { return b.db.Close() }

type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

func (s *BoltStore) Save(ctx context.Context, id string, blob []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s does not exist", s.bucket)
		}
		return bucket.Put([]byte(id), blob)
	})
}

func (s *BoltStore) Load(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		// bolt memory is only valid inside the transaction
		out = clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
}

func (s *BoltStore) LoadAll(ctx context.Context) (map[string][]byte, error) {
	out := map[string][]byte{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			out[string(k)] = clone(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.bucket, err)
	}
	return out, nil
}
