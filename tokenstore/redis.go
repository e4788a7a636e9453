package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores the token under a single Redis key, sharing it between
// multiple processes fronting the same API. An optional TTL lets the entry
// expire with the token's natural lifetime.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// Compile-time check to ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL sets an expiry on the stored token. Zero (the default) stores it
// without expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a RedisStore using the given client and key. The
// client's lifecycle remains owned by the caller.
func NewRedisStore(client redis.UniversalClient, key string, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	s := &RedisStore{
		client: client,
		key:    key,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Read returns the token stored under the key. A missing or empty key maps to
// ErrNoToken.
func (s *RedisStore) Read(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: redis key %s", ErrNoToken, s.key)
		}
		return "", fmt.Errorf("reading token from redis: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty value at redis key %s", ErrNoToken, s.key)
	}
	return token, nil
}

// Write stores the token under the key, replacing any existing value.
func (s *RedisStore) Write(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing token to redis: %w", err)
	}
	return nil
}

// Clear deletes the key. Deleting a missing key is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clearing token in redis: %w", err)
	}
	return nil
}
