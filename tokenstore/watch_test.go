package tokenstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchSeesWriteAndClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "token")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	events := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() { events <- struct{}{} })
	}()

	// Let the watcher register before touching the file.
	time.Sleep(100 * time.Millisecond)

	if err := store.Write(ctx, "tok-123"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForEvent(t, events, "write")
	drainEvents(events)

	// Clearing removes the file; watchers must see that too.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	waitForEvent(t, events, "clear")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after cancellation")
	}
}

func waitForEvent(t *testing.T, events <-chan struct{}, op string) {
	t.Helper()
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification after %s", op)
	}
}

// drainEvents absorbs trailing notifications from the previous operation so
// the next wait observes a fresh one.
func drainEvents(events <-chan struct{}) {
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}
