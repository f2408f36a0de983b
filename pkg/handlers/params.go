package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/insightqa/insight-engine/pkg/models"
)

// parsePatternFilters extracts filter, pagination and time-range query
// params for pattern listing. Unparseable values fall back to defaults.
func parsePatternFilters(r *http.Request) models.PatternFilters {
	filters := models.PatternFilters{
		Limit:  50,
		Offset: 0,
	}

	query := r.URL.Query()

	filters.PatternClass = query.Get("pattern_class")

	if v := query.Get("resolved"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.Resolved = &b
		}
	}
	if v := query.Get("owner_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filters.OwnerID = &id
		}
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.Limit = n
		}
	}
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}
	if v := query.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.Since = &t
		}
	}
	if v := query.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.Until = &t
		}
	}

	return filters
}
