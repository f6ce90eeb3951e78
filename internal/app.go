// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jera/internal/api"
	"github.com/starford/jera/internal/entryservice"
	"github.com/starford/jera/internal/ics"
	"github.com/starford/jera/internal/mcpserver"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/search"
	"github.com/starford/jera/internal/sse"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/viewsync"
)

// core is what every command needs: configuration, logger, zone and store.
type core struct {
	cfg    *Config
	logger *slog.Logger
	loc    *time.Location
	store  *storage.File
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout, out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) setup() (*core, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", loc.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFile(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return &core{cfg: cfg, logger: logger, loc: loc, store: store}, nil
}

// reindexHook keeps the search mirror in step with every committed collection.
func reindexHook(db *search.DB, loc *time.Location, logger *slog.Logger) entryservice.CommitHook {
	return func(_ context.Context, c entryservice.Change) {
		if err := db.Reindex(c.Entries, loc); err != nil {
			logger.Warn("search reindex failed",
				slog.String("kind", c.Kind),
				slog.String("error", err.Error()))
		}
	}
}

// Run starts the HTTP server, file watcher and rollover scheduler.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.setup()
	if err != nil {
		return err
	}
	cfg, logger, loc, store := c.cfg, c.logger, c.loc, c.store

	// Initialize SQLite search mirror.
	db, err := search.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init search: %w", err)
	}
	defer db.Close()

	// SSE broker receives every render.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	syncer := viewsync.New(
		viewsync.WithLocation(loc),
		viewsync.WithLogger(logger),
		viewsync.WithRenderer(broker),
	)
	defer syncer.Close()

	svc := entryservice.New(store,
		entryservice.WithLocation(loc),
		entryservice.WithLogger(logger),
		entryservice.WithCommitHook(func(ctx context.Context, ch entryservice.Change) {
			if _, err := syncer.Replace(ctx, ch.Entries); err != nil {
				logger.Warn("view replace failed", slog.String("error", err.Error()))
			}
		}),
		entryservice.WithCommitHook(reindexHook(db, loc, logger)),
		entryservice.WithCommitHook(func(_ context.Context, ch entryservice.Change) {
			switch ch.Kind {
			case entryservice.KindCreated, entryservice.KindUpdated, entryservice.KindDeleted:
				broker.PublishEntryEvent(ch.Kind, ch.ID)
			}
		}),
	)

	// Initial load renders the first view and fills the mirror.
	if entries, err := svc.Load(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	} else {
		logger.Info("entries loaded", slog.Int("count", len(entries)))
	}

	handler := api.NewHandler(svc, syncer, db)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if _, err := store.Get(req.Context()); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		if err := db.Ping(); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "search unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the store for writes made by other processes.
	g.Go(func() error {
		err := store.Watch(gCtx, logger, func(entries []models.Entry) {
			logger.Info("store changed externally", slog.Int("count", len(entries)))
			if err := svc.Observe(gCtx); err != nil {
				logger.Warn("external change not applied", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			logger.Error("store watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Re-render at each rollover so "today" follows the clock.
	g.Go(func() error {
		return runRollover(gCtx, cfg.Calendar.Rollover, loc, syncer, logger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams end when the broker closes; do it first so Shutdown
		// does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher and scheduler stop
// together with the HTTP server.
var errShutdown = errors.New("shutdown")

func writeHealth(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// runRollover schedules syncer.Refresh on spec, evaluated in loc, until ctx
// is done.
func runRollover(ctx context.Context, spec string, loc *time.Location, syncer *viewsync.Syncer, logger *slog.Logger) error {
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		v, err := syncer.Refresh(ctx)
		if err != nil {
			logger.Warn("rollover refresh failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("day rolled over", slog.String("today", string(v.Today)))
	}); err != nil {
		return fmt.Errorf("schedule rollover %q: %w", spec, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.setup()
	if err != nil {
		return err
	}

	db, err := search.Open(c.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init search: %w", err)
	}
	defer db.Close()

	svc := entryservice.New(c.store,
		entryservice.WithLocation(c.loc),
		entryservice.WithLogger(c.logger),
		entryservice.WithCommitHook(reindexHook(db, c.loc, c.logger)),
	)
	if _, err := svc.Load(context.Background()); err != nil {
		c.logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, db).ServeStdio()
}

// Export writes the iCalendar feed of every stored entry to the configured
// output.
func Export(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.setup()
	if err != nil {
		return err
	}

	svc := entryservice.New(c.store,
		entryservice.WithLocation(c.loc),
		entryservice.WithLogger(c.logger),
	)
	entries, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	n, err := ics.Write(app.out, entries, c.loc, time.Now())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	c.logger.Info("calendar exported",
		slog.Int("events", n),
		slog.Int("entries", len(entries)))
	return nil
}
