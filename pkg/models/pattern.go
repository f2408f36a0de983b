package models

import (
	"time"

	"github.com/google/uuid"
)

// Pattern classes. This is a closed set: adding a class means touching the
// severity derivation in pkg/detect and the title lookup in the alert
// generator, both of which switch exhaustively over these values.
const (
	PatternClassStepExcess      = "step_excess"
	PatternClassTicketExcess    = "ticket_excess"
	PatternClassIncreasingTrend = "increasing_trend"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ValidPatternClass reports whether s is a known pattern class.
func ValidPatternClass(s string) bool {
	switch s {
	case PatternClassStepExcess, PatternClassTicketExcess, PatternClassIncreasingTrend:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// SeverityRank orders severities for critical-first sorting. Lower is more severe.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// DetectedPattern is a behavioral pattern found by the detection engine.
// Rows are append-mostly: after creation only the resolution fields change.
type DetectedPattern struct {
	ID           uuid.UUID  `json:"id"`
	PatternClass string     `json:"pattern_class"`
	Severity     string     `json:"severity"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty"`

	// AffectedUnitIDs lists the implicated units, most relevant first.
	// Always non-empty.
	AffectedUnitIDs []string `json:"affected_unit_ids"`

	// ExcessRatio is actual/baseline time; > 1.0 whenever present.
	ExcessRatio *float64 `json:"excess_ratio,omitempty"`

	// Confidence is a fixed per-rule reliability weight in (0, 1].
	Confidence float64 `json:"confidence"`

	Description     string   `json:"description"`
	SuggestedCause  *string  `json:"suggested_cause,omitempty"`
	Recommendations []string `json:"recommendations"`

	// Recurrence annotation computed before persistence.
	IsRecurring     bool       `json:"is_recurring"`
	RecurrenceCount int        `json:"recurrence_count"`
	LastOccurredAt  *time.Time `json:"last_occurred_at,omitempty"`

	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PatternFilters narrows pattern listing and summary queries.
type PatternFilters struct {
	PatternClass string
	Resolved     *bool
	OwnerID      *uuid.UUID
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}

// PatternSummary holds aggregate counts for dashboard consumption.
type PatternSummary struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	Recurring  int            `json:"recurring"`
	ByClass    map[string]int `json:"by_class"`
	BySeverity map[string]int `json:"by_severity"`
}
