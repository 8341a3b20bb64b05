package handlers

import (
	"encoding/json"
	"net/http"

	"chatvault-backend/internal/models"
	"chatvault-backend/internal/services"
	"chatvault-backend/pkg/httputil"
)

// SearchHandlers handles HTTP requests against the search endpoint.
type SearchHandlers struct {
	searchService *services.SearchService
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(searchService *services.SearchService) *SearchHandlers {
	return &SearchHandlers{searchService: searchService}
}

// HandleSearch handles search requests. The response body is always the
// well-formed search shape: a degraded search returns empty hits plus an
// error message with a failure status, so clients can tell "no results"
// from "search degraded".
func (h *SearchHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Even a rejected request gets the search shape, so clients never
		// need a second parser for failures.
		httputil.RespondJSON(w, http.StatusBadRequest, models.SearchResponse{
			Hits:  models.SearchHits{Hits: []models.SearchHit{}},
			Error: "invalid request body",
		})
		return
	}

	resp, err := h.searchService.Search(r.Context(), req)
	if err != nil {
		httputil.RespondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}
