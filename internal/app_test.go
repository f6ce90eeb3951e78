package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/jera/internal/viewsync"
)

func TestExport_WritesCalendar(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "entries.json")
	doc := `{"entries":[
		{"id":"a","title":"Dentist","description":"","date":"2024-03-05T09:00","reminder":{"amount":1,"unit":"hours"},"createdAt":"2024-03-01T10:00:00.000Z"},
		{"id":"b","title":"Broken","description":"","date":"someday","reminder":null,"createdAt":"2024-03-01T10:00:00.000Z"}
	]}`
	if err := os.WriteFile(storePath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Store.Path = storePath
	cfg.SQLite.Path = filepath.Join(dir, "jera.db")
	cfg.Calendar.Timezone = "UTC"

	var out bytes.Buffer
	err := Export(context.Background(),
		WithConfig(cfg),
		WithOutput(&out),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatal(err)
	}

	ics := out.String()
	if !strings.Contains(ics, "BEGIN:VCALENDAR") || !strings.Contains(ics, "SUMMARY:Dentist") {
		t.Errorf("unexpected output:\n%s", ics)
	}
	if strings.Contains(ics, "Broken") {
		t.Error("entry with unparseable date exported")
	}
	if !strings.Contains(ics, "TRIGGER:-PT1H") {
		t.Error("reminder alarm missing")
	}
}

func TestExport_RequiresConfig(t *testing.T) {
	if err := Export(context.Background(), WithLogOutput(io.Discard)); err == nil {
		t.Error("expected error without config")
	}
}

func TestRunRollover_RefreshesView(t *testing.T) {
	var renders atomic.Int32
	syncer := viewsync.New(
		viewsync.WithLocation(time.UTC),
		viewsync.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		viewsync.WithRenderer(viewsync.RenderFunc(func(viewsync.View) { renders.Add(1) })),
	)
	defer syncer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runRollover(ctx, "@every 1s", time.UTC, syncer, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for renders.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	if renders.Load() == 0 {
		t.Error("rollover never refreshed the view")
	}
	if err := <-done; err != nil {
		t.Errorf("runRollover = %v", err)
	}
}

func TestRunRollover_BadSpec(t *testing.T) {
	syncer := viewsync.New(viewsync.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	defer syncer.Close()

	err := runRollover(context.Background(), "not a cron expression", time.UTC, syncer, slog.Default())
	if err == nil {
		t.Error("expected schedule error")
	}
}
