package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/services"
)

// PatternHandler handles detected-pattern HTTP requests.
type PatternHandler struct {
	patternService services.PatternService
	logger         *zap.Logger
}

// NewPatternHandler creates a new pattern handler.
func NewPatternHandler(patternService services.PatternService, logger *zap.Logger) *PatternHandler {
	return &PatternHandler{
		patternService: patternService,
		logger:         logger,
	}
}

// RegisterRoutes registers the pattern handler's routes on the given mux.
func (h *PatternHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/v1/patterns"

	mux.HandleFunc("GET "+base, h.ListPatterns)
	mux.HandleFunc("GET "+base+"/summary", h.GetSummary)
	mux.HandleFunc("GET "+base+"/{pattern_id}", h.GetPattern)
	mux.HandleFunc("POST "+base+"/{pattern_id}/resolve", h.ResolvePattern)
}

// ListPatterns handles GET /api/v1/patterns
func (h *PatternHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	filters := parsePatternFilters(r)

	results, total, err := h.patternService.ListPatterns(r.Context(), filters)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalid) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_filters", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list patterns", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_patterns_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if results == nil {
		results = make([]*models.DetectedPattern, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginatedResponse{
			Items:  results,
			Total:  total,
			Limit:  filters.Limit,
			Offset: filters.Offset,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetSummary handles GET /api/v1/patterns/summary
func (h *PatternHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	filters := parsePatternFilters(r)

	summary, err := h.patternService.GetSummary(r.Context(), filters)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalid) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_filters", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get pattern summary", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "pattern_summary_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetPattern handles GET /api/v1/patterns/{pattern_id}
func (h *PatternHandler) GetPattern(w http.ResponseWriter, r *http.Request) {
	patternID, err := uuid.Parse(r.PathValue("pattern_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_pattern_id", "Invalid pattern ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	pattern, err := h.patternService.GetPattern(r.Context(), patternID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "pattern_not_found", "Pattern not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get pattern", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_pattern_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: pattern}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type resolvePatternRequest struct {
	Notes *string `json:"notes"`
}

// ResolvePattern handles POST /api/v1/patterns/{pattern_id}/resolve
func (h *PatternHandler) ResolvePattern(w http.ResponseWriter, r *http.Request) {
	patternID, err := uuid.Parse(r.PathValue("pattern_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_pattern_id", "Invalid pattern ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req resolvePatternRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	pattern, err := h.patternService.ResolvePattern(r.Context(), patternID, req.Notes)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "pattern_not_found", "Pattern not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to resolve pattern", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "resolve_pattern_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: pattern}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
