package tokenstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("tokens")
	boltKey    = []byte("current")
)

// BoltStore stores the token in an embedded bbolt database file. Useful when
// the surrounding application already persists state in bbolt.
type BoltStore struct {
	db *bolt.DB
}

// Compile-time check to ensure BoltStore implements Store
var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (creating if needed) the bbolt database at path.
// The returned store owns the database handle; call Close when done.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening token database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing token bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Read returns the stored token. A missing or empty entry maps to ErrNoToken.
func (s *BoltStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		token = string(tx.Bucket(boltBucket).Get(boltKey))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Write stores the token, replacing any existing value.
func (s *BoltStore) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(boltKey, []byte(token))
	})
	if err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(boltKey)
	})
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}
