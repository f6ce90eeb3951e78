// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jera tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jera/internal/calendar"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/entryservice"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/search"
)

const entryFormatURI = "jera://entry-format"

// Server wraps the MCP server with Jera tools.
type Server struct {
	mcp     *server.MCPServer
	entries *entryservice.Service
	mirror  search.Mirror
	now     func() time.Time
}

// New creates a new MCP server with all Jera tools registered. mirror may be
// nil, in which case search_entries reports an error.
func New(entries *entryservice.Service, mirror search.Mirror) *Server {
	s := &Server{entries: entries, mirror: mirror, now: time.Now}

	units := make([]string, len(models.ReminderUnits))
	for i, u := range models.ReminderUnits {
		units[i] = string(u)
	}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List entries newest first, optionally only those on one day."),
		mcp.WithString("day", mcp.Description("Optional day key YYYY-MM-DD")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create a dated entry. Read the contract first via the "+
			"get_entry_contract tool or the jera://entry-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Entry title")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Local date (2024-03-01) or date-time (2024-03-01T09:30)")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithNumber("reminder_amount", mcp.Description("Reminder offset before the entry"), mcp.Min(0)),
		mcp.WithString("reminder_unit", mcp.Description("Reminder unit"), mcp.Enum(units...)),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("edit_entry",
		mcp.WithDescription("Edit the title, description and date of an entry. Reminder and id are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("date", mcp.Required(), mcp.Description("New local date or date-time")),
		mcp.WithString("description", mcp.Description("New description (empty clears it)")),
	), s.editEntry)

	s.mcp.AddTool(mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete an entry by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	), s.deleteEntry)

	s.mcp.AddTool(mcp.NewTool("month_grid",
		mcp.WithDescription("Return the 6x7 month grid (weeks start on Sunday) with per-day entry counts."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Year, e.g. 2024")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Month 1-12"), mcp.Min(1), mcp.Max(12)),
	), s.monthGrid)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through entry titles and descriptions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the Jera entry format contract. "+
			"Call this before creating or editing entries."),
	), s.getEntryContract)

	s.mcp.AddResource(
		mcp.NewResource(entryFormatURI, "Entry Format Contract",
			mcp.WithResourceDescription("Entry fields, accepted date forms and reminder units."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		list []models.Entry
		err  error
	)
	if day := req.GetString("day", ""); day != "" {
		list, err = s.entries.ListDay(ctx, daykey.DayKey(day))
	} else {
		list, err = s.entries.List(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no entries found"), nil
	}
	return jsonResult(list), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := entryservice.Draft{
		Title:       title,
		Description: req.GetString("description", ""),
		Date:        date,
	}
	amount := req.GetFloat("reminder_amount", 0)
	unit := req.GetString("reminder_unit", "")
	if amount != 0 || unit != "" {
		d.Reminder = &entryservice.ReminderDraft{Amount: amount, Unit: models.ReminderUnit(unit)}
	}

	e, err := s.entries.Create(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e), nil
}

func (s *Server) editEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.entries.Update(ctx, id, entryservice.Draft{
		Title:       title,
		Description: req.GetString("description", ""),
		Date:        date,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e), nil
}

func (s *Server) deleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

// gridDay is the compact per-cell view returned by month_grid.
type gridDay struct {
	Day     daykey.DayKey `json:"day"`
	InMonth bool          `json:"inMonth"`
	Today   bool          `json:"today,omitempty"`
	Entries int           `json:"entries,omitempty"`
}

func (s *Server) monthGrid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	month, err := req.RequireInt("month")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if month < 1 || month > 12 {
		return mcp.NewToolResultError("month must be 1-12"), nil
	}

	list, err := s.entries.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc := s.entries.Location()
	ix := calendar.BuildIndex(list, loc)
	grid := calendar.BuildGrid(year, month-1, ix, daykey.FromTime(s.now(), loc), "")

	weeks := make([][]gridDay, 0, calendar.GridRows)
	for _, row := range grid.Rows() {
		week := make([]gridDay, len(row))
		for i, c := range row {
			week[i] = gridDay{Day: c.DayKey, InMonth: c.InCurrentMonth, Today: c.IsToday, Entries: c.EntryCount}
		}
		weeks = append(weeks, week)
	}
	return jsonResult(map[string]any{
		"label": grid.Label,
		"weeks": weeks,
	}), nil
}

func (s *Server) searchEntries(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.mirror == nil {
		return mcp.NewToolResultError("search unavailable"), nil
	}
	results, err := s.mirror.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getEntryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      entryFormatURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
