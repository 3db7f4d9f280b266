package handler

import (
	"net/http"
	"strings"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/api/response"
	"github.com/syntaxsurfers/smartcity/internal/search"
)

// SearchHandler handles city search and geocoding.
type SearchHandler struct {
	geocoder Geocoder
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(geocoder Geocoder) *SearchHandler {
	return &SearchHandler{
		geocoder: geocoder,
	}
}

// Search handles GET /v1/search - check a city against the supported list.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if !search.ValidateCity(query) {
		response.NotFound(w, r, "city not found")
		return
	}
	response.JSON(w, r, http.StatusOK, models.SearchResult{
		Query: query,
		City:  strings.ToLower(strings.TrimSpace(query)),
		Found: true,
	})
}

// Geocode handles GET /v1/geocode - resolve free text to coordinates.
func (h *SearchHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	if h.geocoder == nil {
		response.ServiceUnavailable(w, r, "geocoding is not configured")
		return
	}
	loc, err := h.geocoder.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeGeocodeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}
