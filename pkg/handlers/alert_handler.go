package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/services"
)

// AlertHandler handles alert HTTP requests.
type AlertHandler struct {
	alertService services.AlertService
	logger       *zap.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alertService services.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// RegisterRoutes registers the alert handler's routes on the given mux.
func (h *AlertHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/v1/alerts"

	mux.HandleFunc("GET "+base, h.ListUnread)
	mux.HandleFunc("GET "+base+"/count", h.UnreadCount)
	mux.HandleFunc("POST "+base+"/{alert_id}/read", h.MarkRead)
	mux.HandleFunc("POST "+base+"/{alert_id}/dismiss", h.Dismiss)
}

// ListUnread handles GET /api/v1/alerts
func (h *AlertHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	alerts, err := h.alertService.ListUnread(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_alerts_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if alerts == nil {
		alerts = make([]*models.Alert, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: alerts}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UnreadCount handles GET /api/v1/alerts/count
func (h *AlertHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.alertService.UnreadCount(r.Context())
	if err != nil {
		h.logger.Error("Failed to count alerts", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "count_alerts_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]int{"count": count},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// MarkRead handles POST /api/v1/alerts/{alert_id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, "mark_read_failed", h.alertService.MarkRead, "Alert marked as read")
}

// Dismiss handles POST /api/v1/alerts/{alert_id}/dismiss
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, "dismiss_failed", h.alertService.Dismiss, "Alert dismissed")
}

func (h *AlertHandler) updateAlert(
	w http.ResponseWriter,
	r *http.Request,
	errorCode string,
	update func(ctx context.Context, id uuid.UUID) error,
	message string,
) {
	alertID, err := uuid.Parse(r.PathValue("alert_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_alert_id", "Invalid alert ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := update(r.Context(), alertID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "alert_not_found", "Alert not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to update alert", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, errorCode, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: message}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
