package models

import (
	"time"

	"github.com/google/uuid"
)

// StepTiming is one step's elapsed time versus its estimate.
type StepTiming struct {
	Name             string `json:"name"`
	ActualSeconds    int64  `json:"actual_seconds"`
	EstimatedSeconds int64  `json:"estimated_seconds"`
}

// TimingSample holds the timing facts of one completed unit of work.
// Produced by the external workflow engine; immutable once written.
type TimingSample struct {
	UnitID   string     `json:"unit_id"`
	CohortID string     `json:"cohort_id"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`

	Steps []StepTiming `json:"steps"`

	TotalActualSeconds    int64 `json:"total_actual_seconds"`
	TotalEstimatedSeconds int64 `json:"total_estimated_seconds"`

	CompletedAt time.Time `json:"completed_at"`
}

// OwnerTotal is one historical completion total for an owner,
// used by the trend rule.
type OwnerTotal struct {
	UnitID             string `json:"unit_id"`
	TotalActualSeconds int64  `json:"total_actual_seconds"`
}
