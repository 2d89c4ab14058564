package testsupport

import (
	"context"
	"testing"

	"qoxide/internal/config"
	"qoxide/internal/queue"
)

// MustOpenQueue opens a queue for cfg and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Queue {
	t.Helper()

	q, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q
}

// MustOpenSQLite opens a file-backed SQLite store in a temp directory.
func MustOpenSQLite(t testing.TB) *queue.SQLiteStore {
	t.Helper()

	cfg := NewConfig(t)
	store, err := queue.OpenSQLite(cfg.Store.Path)
	if err != nil {
		t.Fatalf("queue.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustAdd enqueues payload and returns the new message id.
func MustAdd(t testing.TB, q *queue.Queue, payload []byte) int64 {
	t.Helper()

	id, err := q.Add(context.Background(), payload)
	if err != nil {
		t.Fatalf("queue.Add: %v", err)
	}
	return id
}
