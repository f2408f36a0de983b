package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/database"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db      *database.DB
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *database.DB, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
		logger:  logger,
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Pool.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "database_unreachable", "Database is unreachable"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
