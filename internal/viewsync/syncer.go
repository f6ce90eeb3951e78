package viewsync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

// Renderer paints a View. Render is called on the Syncer goroutine and must not
// call back into the Syncer.
type Renderer interface {
	Render(v View)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(v View)

// Render calls f(v).
func (f RenderFunc) Render(v View) { f(v) }

// Option configures a Syncer.
type Option func(*Syncer)

// WithLocation sets the zone whose local clock defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Syncer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderer registers r to receive every render.
func WithRenderer(r Renderer) Option {
	return func(s *Syncer) {
		s.renderers = append(s.renderers, r)
	}
}

type request struct {
	ev     Event
	render bool
	reply  chan View
}

// Syncer owns the view State.
//
// Concurrency model: a single goroutine owns the State and handles one event at
// a time to completion (reduce, derive, render) before taking the next. Public
// methods hand events to it over a channel and wait for the resulting View, so
// store commits, watcher notifications and UI actions arriving concurrently are
// serialized in arrival order without locks.
type Syncer struct {
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
	renderers []Renderer

	requests chan request
	stopCh   chan struct{}
	stopped  chan struct{}
	closed   atomic.Bool
}

// New starts a Syncer in the Initial state.
func New(opts ...Option) *Syncer {
	s := &Syncer{
		loc:      time.Local,
		now:      time.Now,
		logger:   slog.Default(),
		requests: make(chan request),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(Initial(s.now(), s.loc))
	return s
}

// Location returns the zone used for day boundaries.
func (s *Syncer) Location() *time.Location { return s.loc }

func (s *Syncer) run(state State) {
	defer close(s.stopped)

	var revision uint64
	for {
		select {
		case <-s.stopCh:
			return

		case req := <-s.requests:
			state = Reduce(state, req.ev, s.loc)
			if _, ok := req.ev.(ReplaceEntries); ok {
				s.logRebuild(state)
			}

			if req.render {
				revision++
			}
			view := Derive(state, daykey.FromTime(s.now(), s.loc), s.loc)
			view.Revision = revision

			if req.render {
				for _, r := range s.renderers {
					r.Render(view)
				}
			}
			req.reply <- view
		}
	}
}

func (s *Syncer) logRebuild(state State) {
	for _, id := range state.Index.Invalid() {
		s.logger.Warn("viewsync: entry skipped, unparseable date", slog.String("id", id))
	}
	s.logger.Debug("viewsync: index rebuilt",
		slog.Int("entries", len(state.Entries)),
		slog.Int("days", len(state.Index.Keys())))
}

func (s *Syncer) dispatch(ctx context.Context, ev Event, render bool) (View, error) {
	if s.closed.Load() {
		return View{}, apperr.ErrClosed
	}
	req := request{ev: ev, render: render, reply: make(chan View, 1)}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return View{}, apperr.ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	// Once accepted, the loop always replies before it can stop.
	select {
	case v := <-req.reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Replace installs a new entry collection and re-renders.
func (s *Syncer) Replace(ctx context.Context, entries []models.Entry) (View, error) {
	return s.dispatch(ctx, ReplaceEntries{Entries: entries}, true)
}

// Select toggles the selection of day k and re-renders.
func (s *Syncer) Select(ctx context.Context, k daykey.DayKey) (View, error) {
	return s.dispatch(ctx, SelectDay{Key: k}, true)
}

// Clear drops the selection and re-renders.
func (s *Syncer) Clear(ctx context.Context) (View, error) {
	return s.dispatch(ctx, ClearSelection{}, true)
}

// Navigate moves the viewed month by delta and re-renders.
func (s *Syncer) Navigate(ctx context.Context, delta int) (View, error) {
	return s.dispatch(ctx, NavigateMonth{Delta: delta}, true)
}

// NavigateTo views a 0-based month and re-renders.
func (s *Syncer) NavigateTo(ctx context.Context, year, monthIndex int) (View, error) {
	return s.dispatch(ctx, NavigateTo{Year: year, Month: monthIndex}, true)
}

// GoToday views the current month and re-renders.
func (s *Syncer) GoToday(ctx context.Context) (View, error) {
	return s.dispatch(ctx, GoToday{Now: s.now()}, true)
}

// Refresh re-renders without changing state, picking up a new "today".
func (s *Syncer) Refresh(ctx context.Context) (View, error) {
	return s.dispatch(ctx, Refresh{}, true)
}

// Current derives the View of the current state without notifying renderers.
func (s *Syncer) Current(ctx context.Context) (View, error) {
	return s.dispatch(ctx, Refresh{}, false)
}

// Close stops the loop. Later calls return apperr.ErrClosed.
func (s *Syncer) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}
