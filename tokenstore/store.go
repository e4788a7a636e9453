package tokenstore

import (
	"context"
	"errors"
)

// ErrNoToken is returned by Read when no token is stored. Callers distinguish
// absence from storage failures with errors.Is.
var ErrNoToken = errors.New("no token stored")

// ErrReadOnly is returned by Write and Clear on backends that cannot be
// written (e.g. environment variables).
var ErrReadOnly = errors.New("token storage is read-only")

// Store reads and writes the current token.
//
// Token refresh requires writable storage: a refreshed token is written back
// through Write, and a failed refresh clears the store through Clear.
type Store interface {
	// Read returns the stored token. Returns an error wrapping ErrNoToken if
	// no token is stored or the stored value is empty.
	Read(ctx context.Context) (string, error)

	// Write persists the token, replacing any existing value. Returns an
	// error wrapping ErrReadOnly if the backend cannot be written.
	Write(ctx context.Context, token string) error

	// Clear removes the stored token. Clearing an already-empty store is not
	// an error.
	Clear(ctx context.Context) error
}

// FuncStore adapts raw callbacks into a Store, for embedders whose token
// lives in their own state (a config struct, a reactive store, a session).
// ReadFunc and WriteFunc are required; ClearFunc falls back to
// WriteFunc(ctx, "") when nil.
type FuncStore struct {
	ReadFunc  func(ctx context.Context) (string, error)
	WriteFunc func(ctx context.Context, token string) error
	ClearFunc func(ctx context.Context) error
}

// Compile-time check to ensure FuncStore implements Store
var _ Store = (*FuncStore)(nil)

// Read returns the token from ReadFunc, mapping empty values to ErrNoToken.
func (f *FuncStore) Read(ctx context.Context) (string, error) {
	if f.ReadFunc == nil {
		return "", ErrNoToken
	}
	token, err := f.ReadFunc(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Write persists the token through WriteFunc.
func (f *FuncStore) Write(ctx context.Context, token string) error {
	if f.WriteFunc == nil {
		return ErrReadOnly
	}
	return f.WriteFunc(ctx, token)
}

// Clear removes the token through ClearFunc, falling back to writing an
// empty value.
func (f *FuncStore) Clear(ctx context.Context) error {
	if f.ClearFunc != nil {
		return f.ClearFunc(ctx)
	}
	if f.WriteFunc == nil {
		return ErrReadOnly
	}
	return f.WriteFunc(ctx, "")
}
