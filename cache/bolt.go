package cache

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

// BoltCache persists embeddings in a single-file bbolt database so they
// survive process restarts. Entries have no expiry.
type BoltCache struct {
	db *bbolt.DB
}

func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Get(ctx context.Context, key string) ([][]float32, bool, error) {
	var embeddings [][]float32

	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}

		parsed, err := unmarshalEmbeddings(data)
		if err != nil {
			return err
		}

		embeddings = parsed
		found = true
		return nil
	})

	if err != nil {
		return nil, false, err
	}

	return embeddings, found, nil
}

func (c *BoltCache) Put(ctx context.Context, key string, embeddings [][]float32) error {
	data, err := marshalEmbeddings(embeddings)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), data)
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

var _ Cache = (*BoltCache)(nil)
