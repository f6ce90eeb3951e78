package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/checksum"
	"github.com/starford/jera/internal/models"
)

// document is the on-disk shape, {"entries": [...]}.
type document struct {
	Entries []models.Entry `json:"entries"`
}

// File implements Provider with a single JSON document on the local file system.
type File struct {
	path string // absolute

	mu      sync.Mutex // serializes writes and guards lastSum
	lastSum string     // checksum of the content last written or observed
}

// NewFile creates a provider for the document at path, creating its directory.
// The document itself is created on the first Set.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	info, err := os.Stat(abs)
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("storage: store path is a directory: %s", abs)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute document path.
func (f *File) Path() string { return f.path }

// Get reads the stored collection.
func (f *File) Get(ctx context.Context) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := f.read()
	if err != nil {
		return nil, err
	}
	return decode(data, f.path)
}

func (f *File) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w: %w", f.path, apperr.ErrStoreUnavailable, err)
	}
	return data, nil
}

func decode(data []byte, path string) ([]models.Entry, error) {
	if len(data) == 0 {
		return []models.Entry{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w: %w", path, apperr.ErrStoreUnavailable, err)
	}
	if doc.Entries == nil {
		doc.Entries = []models.Entry{}
	}
	return doc.Entries, nil
}

// Set atomically replaces the document: tmp file, fsync, rename.
func (f *File) Set(ctx context.Context, entries []models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	content, err := json.MarshalIndent(document{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}
	content = append(content, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeAtomic(f.path, content); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}
	f.lastSum = checksum.Sum(content)
	return nil
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jera-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// observe records data as the latest known content and reports whether it differs
// from what was last written or observed.
func (f *File) observe(data []byte) bool {
	sum := checksum.Sum(data)
	f.mu.Lock()
	defer f.mu.Unlock()
	if sum == f.lastSum {
		return false
	}
	f.lastSum = sum
	return true
}

var _ Provider = (*File)(nil)
