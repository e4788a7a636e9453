package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore holds the token in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore seeded with an initial token, which
// may be empty.
func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{token: initial}
}

// Read returns the stored token. Returns ErrNoToken when empty.
func (m *MemoryStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// Write replaces the stored token.
func (m *MemoryStore) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Clear removes the stored token.
func (m *MemoryStore) Clear(ctx context.Context) error {
	return m.Write(ctx, "")
}
