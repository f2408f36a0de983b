package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/services/workqueue"
)

// DetectionHandler accepts completion notifications and feeds the work queue.
type DetectionHandler struct {
	queue  *workqueue.Queue
	logger *zap.Logger
}

// NewDetectionHandler creates a new detection handler.
func NewDetectionHandler(queue *workqueue.Queue, logger *zap.Logger) *DetectionHandler {
	return &DetectionHandler{
		queue:  queue,
		logger: logger,
	}
}

// RegisterRoutes registers the detection handler's routes on the given mux.
func (h *DetectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/detections", h.EnqueueDetection)
}

type enqueueDetectionRequest struct {
	UnitID string `json:"unit_id"`
}

// EnqueueDetection handles POST /api/v1/detections.
// Fire-and-forget: the caller gets 202 whether or not the queue had room;
// a full queue drops the job and the workflow engine does not retry.
func (h *DetectionHandler) EnqueueDetection(w http.ResponseWriter, r *http.Request) {
	var req enqueueDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	req.UnitID = strings.TrimSpace(req.UnitID)
	if req.UnitID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_unit_id", "unit_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.queue.Enqueue(workqueue.Job{
		UnitID:     req.UnitID,
		EnqueuedAt: time.Now(),
	})

	if err := WriteJSON(w, http.StatusAccepted, ApiResponse{
		Success: true,
		Message: "Detection queued",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
