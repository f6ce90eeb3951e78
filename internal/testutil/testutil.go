// Package testutil provides shared test helpers for stores and databases.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/search"
	"github.com/starford/jera/internal/storage"
)

// TestDB creates a temporary search database that is automatically cleaned up.
func TestDB(t *testing.T) *search.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jera-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := search.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a file store in a temporary directory.
func TestStore(t *testing.T) *storage.File {
	t.Helper()
	store, err := storage.NewFile(filepath.Join(t.TempDir(), "entries.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// MemStore is an in-memory storage.Provider whose reads and writes can be
// made to fail.
type MemStore struct {
	mu      sync.Mutex
	entries []models.Entry
	sets    int

	FailGet bool
	FailSet bool
}

// NewMemStore returns a store holding entries.
func NewMemStore(entries ...models.Entry) *MemStore {
	return &MemStore{entries: models.CloneAll(entries)}
}

// Get implements storage.Provider.
func (m *MemStore) Get(_ context.Context) ([]models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet {
		return nil, apperr.ErrStoreUnavailable
	}
	return models.CloneAll(m.entries), nil
}

// Set implements storage.Provider.
func (m *MemStore) Set(_ context.Context, entries []models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet {
		return apperr.ErrStoreUnavailable
	}
	m.entries = models.CloneAll(entries)
	m.sets++
	return nil
}

// Watch implements storage.Provider; it blocks until ctx is done.
func (m *MemStore) Watch(ctx context.Context, _ *slog.Logger, _ storage.ChangeFunc) error {
	<-ctx.Done()
	return nil
}

// Put replaces the contents as another writer would, bypassing Set counting.
func (m *MemStore) Put(entries ...models.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = models.CloneAll(entries)
}

// Sets returns how many successful writes happened.
func (m *MemStore) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

var _ storage.Provider = (*MemStore)(nil)
