package api

import (
	"github.com/starford/jera/internal/entryservice"
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/search"
	"github.com/starford/jera/internal/viewsync"
)

// EntryRequest is the request body for creating or editing an entry.
// On edit only title, description and date are applied.
type EntryRequest = entryservice.Draft

// Entry is a stored entry (aliased from the domain layer).
type Entry = models.Entry

// View is the rendered calendar state (aliased from the view layer).
type View = viewsync.View

// SelectDayRequest is the request body for POST /api/view/select.
type SelectDayRequest struct {
	DayKey string `json:"dayKey" example:"2024-03-05" validate:"required"`
}

// NavigateRequest is the request body for POST /api/view/navigate.
// Either Delta, or Year and Month (0-based) must be set.
type NavigateRequest struct {
	Delta *int `json:"delta,omitempty" example:"-1"`
	Year  *int `json:"year,omitempty" example:"2024"`
	Month *int `json:"month,omitempty" example:"2"`
}

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []Entry `json:"entries" validate:"required"`
	Total   int     `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit.
type SearchResult = search.Result

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
