// Package entryservice implements entry mutations against the persistence
// store. Every mutation reads the stored collection, writes the new one, and
// only after the store confirms hands it to the commit hooks.
package entryservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/calendar"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/storage"
)

// createdAtLayout matches what browsers produce for Date.toISOString.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// Change kinds passed to commit hooks.
const (
	KindCreated  = "created"
	KindUpdated  = "updated"
	KindDeleted  = "deleted"
	KindResync   = "resync"   // a mutation targeted a vanished entry
	KindExternal = "external" // the store changed outside this process
)

// Change describes a committed collection.
type Change struct {
	Kind    string
	ID      string
	Entries []models.Entry
}

// CommitHook receives every committed collection, in commit order.
type CommitHook func(ctx context.Context, c Change)

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the zone used to validate and bucket dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDs overrides the uuid generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCommitHook registers fn to run after every commit.
func WithCommitHook(fn CommitHook) Option {
	return func(s *Service) {
		s.hooks = append(s.hooks, fn)
	}
}

// Service coordinates the store and the commit hooks.
type Service struct {
	store  storage.Provider
	loc    *time.Location
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
	hooks  []CommitHook

	// mu serializes read-modify-write cycles and keeps hooks in commit order.
	mu sync.Mutex
}

// New creates a service on top of store.
func New(store storage.Provider, opts ...Option) *Service {
	s := &Service{
		store:  store,
		loc:    time.Local,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for day boundaries.
func (s *Service) Location() *time.Location { return s.loc }

// commit runs the hooks for a collection the store already holds. The write
// cannot be undone, so hooks run even when the caller has gone away.
func (s *Service) commit(ctx context.Context, c Change) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range s.hooks {
		h(ctx, Change{Kind: c.Kind, ID: c.ID, Entries: models.CloneAll(c.Entries)})
	}
}

// Create validates d and appends a new entry.
func (s *Service) Create(ctx context.Context, d Draft) (models.Entry, error) {
	if err := d.Validate(s.loc); err != nil {
		return models.Entry{}, err
	}
	d = d.trimmed()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: create: %w", err)
	}

	e := models.Entry{
		ID:          s.newID(),
		Title:       d.Title,
		Description: d.Description,
		Date:        d.Date,
		Reminder:    d.Reminder.model(),
		CreatedAt:   s.now().UTC().Format(createdAtLayout),
	}
	next := append(models.CloneAll(current), e)
	if err := s.store.Set(ctx, next); err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: create: %w", err)
	}

	s.logger.Info("entry created", slog.String("id", e.ID))
	s.commit(ctx, Change{Kind: KindCreated, ID: e.ID, Entries: next})
	return e.Clone(), nil
}

// Update replaces title, description and date of entry id. The id, createdAt
// and reminder are kept.
func (s *Service) Update(ctx context.Context, id string, d Draft) (models.Entry, error) {
	if err := d.Validate(s.loc); err != nil {
		return models.Entry{}, err
	}
	d = d.trimmed()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: update: %w", err)
	}
	i := indexOf(current, id)
	if i < 0 {
		s.resync(ctx, id, current)
		return models.Entry{}, fmt.Errorf("entryservice: update %s: %w", id, apperr.ErrNotFound)
	}

	next := models.CloneAll(current)
	next[i].Title = d.Title
	next[i].Description = d.Description
	next[i].Date = d.Date
	if err := s.store.Set(ctx, next); err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: update: %w", err)
	}

	s.logger.Info("entry updated", slog.String("id", id))
	s.commit(ctx, Change{Kind: KindUpdated, ID: id, Entries: next})
	return next[i].Clone(), nil
}

// Delete removes entry id.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("entryservice: delete: %w", err)
	}
	i := indexOf(current, id)
	if i < 0 {
		s.resync(ctx, id, current)
		return fmt.Errorf("entryservice: delete %s: %w", id, apperr.ErrNotFound)
	}

	next := make([]models.Entry, 0, len(current)-1)
	next = append(next, current[:i]...)
	next = append(next, current[i+1:]...)
	if err := s.store.Set(ctx, next); err != nil {
		return fmt.Errorf("entryservice: delete: %w", err)
	}

	s.logger.Info("entry deleted", slog.String("id", id))
	s.commit(ctx, Change{Kind: KindDeleted, ID: id, Entries: next})
	return nil
}

// resync brings the view back to the store's state after a mutation raced
// with another writer. Nothing is written.
func (s *Service) resync(ctx context.Context, id string, current []models.Entry) {
	s.logger.Warn("entry vanished before mutation, resyncing", slog.String("id", id))
	s.commit(ctx, Change{Kind: KindResync, ID: id, Entries: current})
}

// Observe is called when the store changed outside this process. The
// watcher's snapshot may predate a commit made since, so the store is read
// again under the lock and that collection is committed instead.
func (s *Service) Observe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("entryservice: observe: %w", err)
	}
	s.commit(ctx, Change{Kind: KindExternal, Entries: current})
	return nil
}

// Load reads the store and pushes it through the commit hooks. Used at startup.
func (s *Service) Load(ctx context.Context) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("entryservice: load: %w", err)
	}
	s.commit(ctx, Change{Kind: KindExternal, Entries: current})
	return current, nil
}

// Get returns entry id.
func (s *Service) Get(ctx context.Context, id string) (models.Entry, error) {
	current, err := s.store.Get(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: get: %w", err)
	}
	i := indexOf(current, id)
	if i < 0 {
		return models.Entry{}, fmt.Errorf("entryservice: get %s: %w", id, apperr.ErrNotFound)
	}
	return current[i], nil
}

// List returns every entry, newest first.
func (s *Service) List(ctx context.Context) ([]models.Entry, error) {
	current, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("entryservice: list: %w", err)
	}
	return calendar.SortNewestFirst(current, s.loc), nil
}

// ListDay returns the entries falling on day k, newest first.
func (s *Service) ListDay(ctx context.Context, k daykey.DayKey) ([]models.Entry, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("entryservice: day %q: %w", k, apperr.ErrInvalidDate)
	}
	current, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("entryservice: list day: %w", err)
	}
	ix := calendar.BuildIndex(current, s.loc)
	bucket := ix.Lookup(k)
	if bucket == nil {
		return []models.Entry{}, nil
	}
	return calendar.SortNewestFirst(bucket, s.loc), nil
}

func indexOf(entries []models.Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
