package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Calendar view.
	r.Get("/view", h.GetView)
	r.Post("/view/select", h.SelectDay)
	r.Post("/view/clear", h.ClearSelection)
	r.Post("/view/navigate", h.Navigate)
	r.Post("/view/today", h.Today)

	// Entries CRUD.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/{id}", h.GetEntry)
	r.Put("/entries/{id}", h.UpdateEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)

	// Search mirror.
	r.Get("/search", h.Search)
	r.Get("/days", h.CountByDay)

	// Export.
	r.Get("/calendar.ics", h.Calendar)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
