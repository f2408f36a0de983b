package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert is the user-facing notification derived from a detected pattern.
// Exactly one alert exists per pattern; the pattern_id back-reference is a
// lookup key, not ownership - the alert survives later pattern mutation.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	PatternID    uuid.UUID `json:"pattern_id"`
	PatternClass string    `json:"pattern_class"`

	// Severity is copied from the pattern at generation time.
	Severity string `json:"severity"`

	Title            string   `json:"title"`
	Message          *string  `json:"message,omitempty"`
	AffectedUnitIDs  []string `json:"affected_unit_ids"`
	SuggestedActions []string `json:"suggested_actions"`

	IsRead      bool       `json:"is_read"`
	IsDismissed bool       `json:"is_dismissed"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
