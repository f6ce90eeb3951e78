package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/jera/internal/entryservice"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/testutil"
)

var west = time.FixedZone("west", -8*60*60)

func testServer(t *testing.T) (*Server, *testutil.MemStore) {
	t.Helper()

	store := testutil.NewMemStore()
	db := testutil.TestDB(t)
	svc := entryservice.New(store,
		entryservice.WithLocation(west),
		entryservice.WithLogger(testutil.Discard()),
		entryservice.WithCommitHook(func(_ context.Context, c entryservice.Change) {
			_ = db.Reindex(c.Entries, west)
		}),
	)

	srv := New(svc, db)
	srv.now = func() time.Time { return time.Date(2024, time.March, 10, 9, 0, 0, 0, west) }
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_entries":
		result, err = srv.listEntries(ctx, req)
	case "create_entry":
		result, err = srv.createEntry(ctx, req)
	case "edit_entry":
		result, err = srv.editEntry(ctx, req)
	case "delete_entry":
		result, err = srv.deleteEntry(ctx, req)
	case "month_grid":
		result, err = srv.monthGrid(ctx, req)
	case "search_entries":
		result, err = srv.searchEntries(ctx, req)
	case "get_entry_contract":
		result, err = srv.getEntryContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func createEntry(t *testing.T, srv *Server, args map[string]interface{}) models.Entry {
	t.Helper()
	r := callTool(t, srv, "create_entry", args)
	if r.IsError {
		t.Fatalf("create_entry failed: %s", resultText(r))
	}
	var e models.Entry
	if err := json.Unmarshal([]byte(resultText(r)), &e); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return e
}

func TestCreateAndListEntries(t *testing.T) {
	srv, store := testServer(t)

	e := createEntry(t, srv, map[string]interface{}{
		"title":           "Dentist",
		"date":            "2024-03-05T23:50",
		"reminder_amount": float64(2),
		"reminder_unit":   "hours",
	})
	if e.ID == "" || e.Reminder == nil || e.Reminder.Unit != models.UnitHours {
		t.Errorf("created = %+v", e)
	}
	if store.Sets() != 1 {
		t.Errorf("store writes = %d", store.Sets())
	}

	r := callTool(t, srv, "list_entries", map[string]interface{}{"day": "2024-03-05"})
	if !strings.Contains(resultText(r), "Dentist") {
		t.Errorf("day list = %q", resultText(r))
	}

	r = callTool(t, srv, "list_entries", map[string]interface{}{"day": "2024-03-06"})
	if resultText(r) != "no entries found" {
		t.Errorf("other day = %q", resultText(r))
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv, store := testServer(t)

	cases := []map[string]interface{}{
		{"date": "2024-03-05"},
		{"title": "   ", "date": "2024-03-05"},
		{"title": "x", "date": "March 5th"},
		{"title": "x", "date": "2024-03-05", "reminder_amount": float64(-1), "reminder_unit": "hours"},
		{"title": "x", "date": "2024-03-05", "reminder_amount": float64(5), "reminder_unit": "fortnights"},
	}
	for i, args := range cases {
		if r := callTool(t, srv, "create_entry", args); !r.IsError {
			t.Errorf("case %d: expected error, got %q", i, resultText(r))
		}
	}
	if store.Sets() != 0 {
		t.Errorf("rejected drafts wrote %d times", store.Sets())
	}
}

func TestEditEntryKeepsReminder(t *testing.T) {
	srv, _ := testServer(t)
	e := createEntry(t, srv, map[string]interface{}{
		"title":           "Call",
		"date":            "2024-03-05",
		"reminder_amount": float64(15),
		"reminder_unit":   "minutes",
	})

	r := callTool(t, srv, "edit_entry", map[string]interface{}{
		"id":    e.ID,
		"title": "Call back",
		"date":  "2024-03-07T10:00",
	})
	if r.IsError {
		t.Fatalf("edit failed: %s", resultText(r))
	}
	var got models.Entry
	_ = json.Unmarshal([]byte(resultText(r)), &got)
	if got.ID != e.ID || got.CreatedAt != e.CreatedAt || got.Title != "Call back" {
		t.Errorf("edited = %+v", got)
	}
	if got.Reminder == nil || got.Reminder.Amount != 15 {
		t.Errorf("reminder lost: %+v", got.Reminder)
	}
}

func TestEditMissingEntry(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "edit_entry", map[string]interface{}{
		"id": "nope", "title": "x", "date": "2024-03-05",
	})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestDeleteEntry(t *testing.T) {
	srv, _ := testServer(t)
	e := createEntry(t, srv, map[string]interface{}{"title": "Temp", "date": "2024-03-05"})

	r := callTool(t, srv, "delete_entry", map[string]interface{}{"id": e.ID})
	if resultText(r) != "deleted: "+e.ID {
		t.Errorf("delete result = %q", resultText(r))
	}
	r = callTool(t, srv, "delete_entry", map[string]interface{}{"id": e.ID})
	if !r.IsError {
		t.Error("second delete should fail")
	}
}

func TestMonthGrid(t *testing.T) {
	srv, _ := testServer(t)
	createEntry(t, srv, map[string]interface{}{"title": "a", "date": "2024-03-05T08:00"})
	createEntry(t, srv, map[string]interface{}{"title": "b", "date": "2024-03-05T20:00"})

	r := callTool(t, srv, "month_grid", map[string]interface{}{"year": float64(2024), "month": float64(3)})
	if r.IsError {
		t.Fatalf("month_grid failed: %s", resultText(r))
	}
	var out struct {
		Label string      `json:"label"`
		Weeks [][]gridDay `json:"weeks"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Label != "March 2024" || len(out.Weeks) != 6 || len(out.Weeks[0]) != 7 {
		t.Fatalf("grid shape: %q %d weeks", out.Label, len(out.Weeks))
	}
	// March 1, 2024 is a Friday, so the grid starts on Sunday February 25.
	if out.Weeks[0][0].Day != "2024-02-25" || out.Weeks[0][0].InMonth {
		t.Errorf("first cell = %+v", out.Weeks[0][0])
	}
	// Tuesday of the second week.
	if c := out.Weeks[1][2]; c.Day != "2024-03-05" || c.Entries != 2 {
		t.Errorf("Mar 5 = %+v", c)
	}
	if c := out.Weeks[2][0]; c.Day != "2024-03-10" || !c.Today {
		t.Errorf("Mar 10 = %+v", c)
	}

	r = callTool(t, srv, "month_grid", map[string]interface{}{"year": float64(2024), "month": float64(13)})
	if !r.IsError {
		t.Error("month 13 accepted")
	}
}

func TestSearchEntries(t *testing.T) {
	srv, _ := testServer(t)
	createEntry(t, srv, map[string]interface{}{"title": "Quarterly review", "date": "2024-03-05"})
	createEntry(t, srv, map[string]interface{}{"title": "Lunch", "date": "2024-03-06"})

	r := callTool(t, srv, "search_entries", map[string]interface{}{"query": "review"})
	text := resultText(r)
	if !strings.Contains(text, "Quarterly review") || strings.Contains(text, "Lunch") {
		t.Errorf("search = %q", text)
	}
}

func TestGetEntryContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_entry_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "local clock") {
		t.Error("contract missing date rules")
	}
}
