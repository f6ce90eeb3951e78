package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/daykey"
	"github.com/starford/jera/internal/entryservice"
	"github.com/starford/jera/internal/ics"
	"github.com/starford/jera/internal/search"
	"github.com/starford/jera/internal/viewsync"
)

// Handler holds API route handlers.
type Handler struct {
	entries *entryservice.Service
	view    *viewsync.Syncer
	mirror  search.Mirror
	now     func() time.Time
}

// NewHandler creates a new Handler. mirror may be nil, in which case search
// answers 503.
func NewHandler(entries *entryservice.Service, view *viewsync.Syncer, mirror search.Mirror) *Handler {
	return &Handler{entries: entries, view: view, mirror: mirror, now: time.Now}
}

// GetView handles GET /api/view.
//
//	@Summary		Current calendar view
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	View
//	@Security		BearerAuth
//	@Router			/view [get]
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	v, err := h.view.Current(r.Context())
	if err != nil {
		writeError(w, "get view", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SelectDay handles POST /api/view/select. Selecting the selected day clears it.
//
//	@Summary		Toggle the selected day
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectDayRequest	true	"Day to select"
//	@Success		200		{object}	View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/select [post]
func (h *Handler) SelectDay(w http.ResponseWriter, r *http.Request) {
	var req SelectDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	k := daykey.DayKey(strings.TrimSpace(req.DayKey))
	if !k.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("dayKey must be YYYY-MM-DD"))
		return
	}
	v, err := h.view.Select(r.Context(), k)
	if err != nil {
		writeError(w, "select day", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ClearSelection handles POST /api/view/clear.
//
//	@Summary		Clear the selected day
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	View
//	@Security		BearerAuth
//	@Router			/view/clear [post]
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	v, err := h.view.Clear(r.Context())
	if err != nil {
		writeError(w, "clear selection", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Navigate handles POST /api/view/navigate.
//
//	@Summary		Move the viewed month
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NavigateRequest	true	"Relative delta or absolute year/month"
//	@Success		200		{object}	View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/navigate [post]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		v   viewsync.View
		err error
	)
	switch {
	case req.Delta != nil:
		v, err = h.view.Navigate(r.Context(), *req.Delta)
	case req.Year != nil && req.Month != nil:
		v, err = h.view.NavigateTo(r.Context(), *req.Year, *req.Month)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("either delta or year and month are required"))
		return
	}
	if err != nil {
		writeError(w, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Today handles POST /api/view/today.
//
//	@Summary		View the current month
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	View
//	@Security		BearerAuth
//	@Router			/view/today [post]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	v, err := h.view.GoToday(r.Context())
	if err != nil {
		writeError(w, "go to today", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Param			day	query		string	false	"Only entries on this day (YYYY-MM-DD)"
//	@Success		200	{object}	EntryListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	var (
		list []Entry
		err  error
	)
	if day := r.URL.Query().Get("day"); day != "" {
		list, err = h.entries.ListDay(r.Context(), daykey.DayKey(day))
	} else {
		list, err = h.entries.List(r.Context())
	}
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: list, Total: len(list)})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	Entry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create an entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EntryRequest	true	"Entry to create"
//	@Success		201		{object}	Entry
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.entries.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry handles PUT /api/entries/{id}.
//
//	@Summary		Edit title, description and date of an entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Entry id"
//	@Param			body	body		EntryRequest	true	"New values"
//	@Success		200		{object}	Entry
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [put]
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.entries.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/entries/{id}.
//
//	@Summary		Delete an entry
//	@Tags			entries
//	@Param			id	path	string	true	"Entry id"
//	@Success		204	"Entry deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Search entry titles and descriptions
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if h.mirror == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search unavailable"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.mirror.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Calendar handles GET /api/calendar.ics.
//
//	@Summary		iCalendar feed of all entries
//	@Tags			export
//	@Produce		text/calendar
//	@Success		200	{string}	string	"VCALENDAR document"
//	@Security		BearerAuth
//	@Router			/calendar.ics [get]
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	list, err := h.entries.List(r.Context())
	if err != nil {
		writeError(w, "export calendar", err)
		return
	}
	var buf bytes.Buffer
	if _, err := ics.Write(&buf, list, h.entries.Location(), h.now()); err != nil {
		writeError(w, "export calendar", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="jera.ics"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// CountByDay handles GET /api/days?from=&to=.
//
//	@Summary		Entry counts per day in a range
//	@Tags			search
//	@Produce		json
//	@Param			from	query		string	true	"First day (YYYY-MM-DD)"
//	@Param			to		query		string	true	"Last day (YYYY-MM-DD)"
//	@Success		200		{object}	map[string]int
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days [get]
func (h *Handler) CountByDay(w http.ResponseWriter, r *http.Request) {
	from := daykey.DayKey(r.URL.Query().Get("from"))
	to := daykey.DayKey(r.URL.Query().Get("to"))
	if !from.Valid() || !to.Valid() || to < from {
		writeError(w, "count by day", fmt.Errorf("%w: from and to must be ordered YYYY-MM-DD days", apperr.ErrInvalidDate))
		return
	}
	if h.mirror == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search unavailable"))
		return
	}
	counts, err := h.mirror.CountByDay(from, to)
	if err != nil {
		writeError(w, "count by day", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
