// Package storage persists the entry collection and reports external changes to it.
package storage

import (
	"context"
	"log/slog"

	"github.com/starford/jera/internal/models"
)

// ChangeFunc receives the new collection after another process changed the store.
type ChangeFunc func(entries []models.Entry)

// Provider is the persistence contract the rest of the application depends on.
type Provider interface {
	// Get returns the stored collection; an absent store is an empty collection.
	Get(ctx context.Context) ([]models.Entry, error)
	// Set replaces the stored collection. It returns only once the write is durable.
	Set(ctx context.Context, entries []models.Entry) error
	// Watch calls onChange for every external modification until ctx is cancelled.
	Watch(ctx context.Context, logger *slog.Logger, onChange ChangeFunc) error
}
