package viewsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/calendar"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/models"
)

var west = time.FixedZone("west", -8*60*60)

// March 10, 2024, mid-morning local time.
var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, west)

func clock() time.Time { return fixedNow }

type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(v View) {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
}

func (r *recorder) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func newSyncer(t *testing.T, r Renderer) *Syncer {
	t.Helper()
	opts := []Option{
		WithLocation(west),
		WithClock(clock),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	}
	if r != nil {
		opts = append(opts, WithRenderer(r))
	}
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

func cellFor(g calendar.Grid, k daykey.DayKey) (calendar.Cell, bool) {
	for _, c := range g.Cells {
		if c.DayKey == k {
			return c, true
		}
	}
	return calendar.Cell{}, false
}

func TestInitial(t *testing.T) {
	s := Initial(fixedNow, west)
	v := Derive(s, daykey.FromTime(fixedNow, west), west)

	if v.State.Year != 2024 || v.State.Month != 2 || v.State.Selected != "" {
		t.Errorf("state = %+v", v.State)
	}
	if v.Grid.Label != "March 2024" {
		t.Errorf("label = %q", v.Grid.Label)
	}
	if v.EmptyMessage != "No entries yet." {
		t.Errorf("empty message = %q", v.EmptyMessage)
	}
	if v.Entries == nil || len(v.Entries) != 0 {
		t.Errorf("entries = %v, want empty", v.Entries)
	}
	c, ok := cellFor(v.Grid, "2024-03-10")
	if !ok || !c.IsToday {
		t.Errorf("today cell = %+v, found=%v", c, ok)
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	entries := []models.Entry{{ID: "1", Title: "a", Date: "2024-03-05T10:00"}}
	s0 := Initial(fixedNow, west)
	s1 := Reduce(s0, ReplaceEntries{Entries: entries}, west)

	entries[0].Title = "changed"
	if s1.Entries[0].Title != "a" {
		t.Error("state aliases the caller's slice")
	}
	if len(s0.Entries) != 0 {
		t.Error("previous state was modified")
	}

	s2 := Reduce(s1, SelectDay{Key: "2024-03-05"}, west)
	if s1.View.Selected != "" || s2.View.Selected != "2024-03-05" {
		t.Errorf("selection leaked: s1=%q s2=%q", s1.View.Selected, s2.View.Selected)
	}
	if s2.Index != s1.Index {
		t.Error("index rebuilt on a selection-only change")
	}
}

func TestDerive_SelectionFiltersAndSorts(t *testing.T) {
	entries := []models.Entry{
		{ID: "early", Title: "Breakfast", Date: "2024-03-05T08:00"},
		{ID: "other", Title: "Elsewhere", Date: "2024-03-06T08:00"},
		{ID: "late", Title: "Dinner", Date: "2024-03-05T19:00"},
	}
	s := Reduce(Initial(fixedNow, west), ReplaceEntries{Entries: entries}, west)
	s = Reduce(s, SelectDay{Key: "2024-03-05"}, west)
	v := Derive(s, "2024-03-10", west)

	if len(v.Entries) != 2 || v.Entries[0].ID != "late" || v.Entries[1].ID != "early" {
		t.Errorf("visible = %+v", v.Entries)
	}
	if v.EmptyMessage != "" {
		t.Errorf("empty message = %q with visible entries", v.EmptyMessage)
	}
	c, _ := cellFor(v.Grid, "2024-03-05")
	if !c.IsSelected || c.EntryCount != 2 {
		t.Errorf("selected cell = %+v", c)
	}
	if v.Total != 3 {
		t.Errorf("total = %d", v.Total)
	}
}

func TestDerive_InvalidEntriesReported(t *testing.T) {
	entries := []models.Entry{
		{ID: "ok", Date: "2024-03-05"},
		{ID: "bad", Date: "whenever"},
	}
	s := Reduce(Initial(fixedNow, west), ReplaceEntries{Entries: entries}, west)
	v := Derive(s, "2024-03-10", west)

	if len(v.Invalid) != 1 || v.Invalid[0] != "bad" {
		t.Errorf("invalid = %v", v.Invalid)
	}
	// Unselected list still shows every entry, unparseable ones last.
	if len(v.Entries) != 2 || v.Entries[1].ID != "bad" {
		t.Errorf("entries = %+v", v.Entries)
	}
}

func TestSyncer_SelectToggle(t *testing.T) {
	rec := &recorder{}
	s := newSyncer(t, rec)
	ctx := context.Background()

	v, err := s.Select(ctx, "2024-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if v.State.Selected != "2024-03-05" {
		t.Errorf("selected = %q", v.State.Selected)
	}
	if v.EmptyMessage != "No entries for 2024-03-05" {
		t.Errorf("empty message = %q", v.EmptyMessage)
	}

	v, _ = s.Select(ctx, "2024-03-05")
	if v.State.Selected != "" {
		t.Errorf("second click did not deselect: %q", v.State.Selected)
	}
	if got := len(rec.all()); got != 2 {
		t.Errorf("renders = %d, want 2", got)
	}
}

func TestSyncer_DeleteSoleEntryKeepsSelection(t *testing.T) {
	rec := &recorder{}
	s := newSyncer(t, rec)
	ctx := context.Background()

	only := models.Entry{ID: "x", Title: "Only", Date: "2024-03-05T12:00"}
	if _, err := s.Replace(ctx, []models.Entry{only}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Select(ctx, "2024-03-05"); err != nil {
		t.Fatal(err)
	}

	// The store commits the deletion.
	v, err := s.Replace(ctx, []models.Entry{})
	if err != nil {
		t.Fatal(err)
	}
	if v.State.Selected != "2024-03-05" {
		t.Errorf("selection dropped: %q", v.State.Selected)
	}
	if len(v.Entries) != 0 || v.EmptyMessage != "No entries for 2024-03-05" {
		t.Errorf("entries=%v message=%q", v.Entries, v.EmptyMessage)
	}
	c, _ := cellFor(v.Grid, "2024-03-05")
	if c.EntryCount != 0 || !c.IsSelected {
		t.Errorf("cell = %+v", c)
	}
}

func TestSyncer_NavigateAndToday(t *testing.T) {
	s := newSyncer(t, nil)
	ctx := context.Background()

	v, _ := s.Navigate(ctx, -3)
	if v.State.Year != 2023 || v.State.Month != 11 || v.Grid.Label != "December 2023" {
		t.Errorf("after -3: %+v label=%q", v.State, v.Grid.Label)
	}
	v, _ = s.NavigateTo(ctx, 2025, 13)
	if v.State.Year != 2026 || v.State.Month != 1 {
		t.Errorf("NavigateTo normalize: %+v", v.State)
	}
	v, _ = s.GoToday(ctx)
	if v.State.Year != 2024 || v.State.Month != 2 {
		t.Errorf("GoToday: %+v", v.State)
	}
}

func TestSyncer_NavigationKeepsSelection(t *testing.T) {
	s := newSyncer(t, nil)
	ctx := context.Background()

	_, _ = s.Select(ctx, "2024-03-05")
	v, _ := s.Navigate(ctx, 1)
	if v.State.Selected != "2024-03-05" {
		t.Errorf("selection lost on navigation: %q", v.State.Selected)
	}
	v, _ = s.Clear(ctx)
	if v.State.Selected != "" || v.EmptyMessage != "No entries yet." {
		t.Errorf("after clear: %+v %q", v.State, v.EmptyMessage)
	}
}

func TestSyncer_CurrentDoesNotRender(t *testing.T) {
	rec := &recorder{}
	s := newSyncer(t, rec)
	ctx := context.Background()

	_, _ = s.Refresh(ctx)
	v, err := s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rec.all()); got != 1 {
		t.Errorf("renders = %d, want 1", got)
	}
	if v.Revision != 1 {
		t.Errorf("revision = %d, want 1", v.Revision)
	}
}

func TestSyncer_RefreshPicksUpNewDay(t *testing.T) {
	var mu sync.Mutex
	now := fixedNow
	s := New(
		WithLocation(west),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	)
	defer s.Close()
	ctx := context.Background()

	mu.Lock()
	now = now.Add(24 * time.Hour)
	mu.Unlock()

	v, _ := s.Refresh(ctx)
	if v.Today != "2024-03-11" {
		t.Errorf("today = %q", v.Today)
	}
	if c, _ := cellFor(v.Grid, "2024-03-11"); !c.IsToday {
		t.Error("new day not marked today")
	}
	if c, _ := cellFor(v.Grid, "2024-03-10"); c.IsToday {
		t.Error("old day still marked today")
	}
}

// Every render must describe one consistent snapshot even when replacements
// and UI actions race.
func TestSyncer_ConcurrentRendersAreConsistent(t *testing.T) {
	rec := &recorder{}
	s := newSyncer(t, rec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			entries := make([]models.Entry, n)
			for j := range entries {
				entries[j] = models.Entry{ID: fmt.Sprintf("%d-%d", n, j), Date: "2024-03-05T10:00"}
			}
			_, _ = s.Replace(ctx, entries)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Select(ctx, "2024-03-05")
		}()
	}
	wg.Wait()

	views := rec.all()
	if len(views) != 40 {
		t.Fatalf("renders = %d, want 40", len(views))
	}
	for i, v := range views {
		if v.Revision != uint64(i+1) {
			t.Errorf("render %d has revision %d", i, v.Revision)
		}
		c, _ := cellFor(v.Grid, "2024-03-05")
		if c.EntryCount != v.Total {
			t.Errorf("render %d: cell count %d, total %d", i, c.EntryCount, v.Total)
		}
		if v.State.HasSelection() && len(v.Entries) != v.Total {
			t.Errorf("render %d: list %d, total %d", i, len(v.Entries), v.Total)
		}
	}
}

func TestSyncer_ClosedReturnsErrClosed(t *testing.T) {
	s := New(WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	s.Close()
	s.Close()

	if _, err := s.Current(context.Background()); !errors.Is(err, apperr.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestSyncer_ContextCancelled(t *testing.T) {
	s := newSyncer(t, RenderFunc(func(View) { time.Sleep(200 * time.Millisecond) }))
	go func() { _, _ = s.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Current(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
