package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth", "token")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Missing file reads as absent
	if _, err := store.Read(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Read on missing file: err = %v, want ErrNoToken", err)
	}

	if err := store.Write(ctx, "tok-123"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	token, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("Read = %q, want %q", token, "tok-123")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Read(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Read after clear: err = %v, want ErrNoToken", err)
	}

	// Clearing twice is not an error
	if err := store.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestFileStoreTrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Write(ctx, "  tok-123\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	token, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("Read = %q, want %q", token, "tok-123")
	}
}

func TestFileStoreRejectsInsecurePermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := os.WriteFile(path, []byte("tok-123\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := store.Read(ctx); err == nil {
		t.Error("Read on world-readable file should fail")
	}
}

func TestFileStoreEmptyFileIsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := store.Read(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Read on empty file: err = %v, want ErrNoToken", err)
	}
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore with empty path should fail")
	}
}
