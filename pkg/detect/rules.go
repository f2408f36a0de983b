// Package detect holds the pure rule evaluators of the pattern engine.
// Each rule takes timing facts and returns at most one pattern draft.
// Rules never touch the database; the detection service feeds them.
package detect

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/insightqa/insight-engine/pkg/models"
)

// Per-rule confidence weights. Fixed by rule, not by input.
const (
	stepExcessConfidence   = 0.8
	cohortExcessConfidence = 0.7
	trendConfidence        = 0.75
)

// Params are the tunable thresholds shared by all rules.
type Params struct {
	// ExcessRatio is the actual/estimated multiple above which a step or
	// unit counts as excessive. Must be > 1.0.
	ExcessRatio float64

	// CriticalRatio escalates a step-excess pattern to critical when the
	// mean excess exceeds it. Must be > ExcessRatio.
	CriticalRatio float64

	// TrendSamples is how many recent completions the trend rule needs.
	TrendSamples int

	// TrendMinIncreasePercent is the oldest-to-newest growth, in percent,
	// below which a monotone run is ignored.
	TrendMinIncreasePercent float64
}

// DefaultParams mirror the shipped configuration defaults.
func DefaultParams() Params {
	return Params{
		ExcessRatio:             1.5,
		CriticalRatio:           2.0,
		TrendSamples:            5,
		TrendMinIncreasePercent: 20,
	}
}

// Rules evaluates the three detection rules against timing data.
type Rules struct {
	params Params
}

// NewRules returns a rule evaluator with the given thresholds.
func NewRules(params Params) *Rules {
	return &Rules{params: params}
}

// StepExcess checks each step of the sample against its estimate and fires
// when at least one step ran longer than ExcessRatio times its estimate.
// Steps with a zero or negative estimate are skipped, never flagged.
func (r *Rules) StepExcess(sample *models.TimingSample) (*models.DetectedPattern, bool) {
	var (
		flagged   []string
		ratioSum  float64
		flaggedN  int
		worstStep string
		worstR    float64
	)
	for _, step := range sample.Steps {
		if step.EstimatedSeconds <= 0 {
			continue
		}
		ratio := float64(step.ActualSeconds) / float64(step.EstimatedSeconds)
		if ratio <= r.params.ExcessRatio {
			continue
		}
		flagged = append(flagged, step.Name)
		ratioSum += ratio
		flaggedN++
		if ratio > worstR {
			worstR = ratio
			worstStep = step.Name
		}
	}
	if flaggedN == 0 {
		return nil, false
	}

	mean := ratioSum / float64(flaggedN)
	severity := models.SeverityWarning
	if mean > r.params.CriticalRatio {
		severity = models.SeverityCritical
	}

	cause := fmt.Sprintf("step %q ran %.1fx its estimate", worstStep, worstR)
	return &models.DetectedPattern{
		PatternClass:    models.PatternClassStepExcess,
		Severity:        severity,
		OwnerID:         sample.OwnerID,
		AffectedUnitIDs: []string{sample.UnitID},
		ExcessRatio:     &mean,
		Confidence:      stepExcessConfidence,
		Description: fmt.Sprintf("%d of %d steps in %s exceeded their time estimates by more than %.0f%%: %s",
			flaggedN, len(sample.Steps), sample.UnitID,
			(r.params.ExcessRatio-1)*100, strings.Join(flagged, ", ")),
		SuggestedCause: &cause,
		Recommendations: []string{
			"Review step estimates for the flagged steps",
			"Consider splitting complex steps into smaller, separately estimated steps",
		},
	}, true
}

// CohortExcess compares the sample's total against the mean total of its
// cohort and fires when the sample took more than ExcessRatio times the
// mean. The resulting pattern is always warning severity; a single outlier
// against a noisy cohort baseline does not justify critical.
func (r *Rules) CohortExcess(sample *models.TimingSample, cohortMeanSeconds float64) (*models.DetectedPattern, bool) {
	if cohortMeanSeconds <= 0 {
		return nil, false
	}
	ratio := float64(sample.TotalActualSeconds) / cohortMeanSeconds
	if ratio <= r.params.ExcessRatio {
		return nil, false
	}

	cause := fmt.Sprintf("cohort %s averages %.0fs for similar work", sample.CohortID, cohortMeanSeconds)
	return &models.DetectedPattern{
		PatternClass:    models.PatternClassTicketExcess,
		Severity:        models.SeverityWarning,
		OwnerID:         sample.OwnerID,
		AffectedUnitIDs: []string{sample.UnitID},
		ExcessRatio:     &ratio,
		Confidence:      cohortExcessConfidence,
		Description: fmt.Sprintf("%s took %.1fx longer than comparable work in its cohort (%.0fs vs %.0fs mean)",
			sample.UnitID, ratio, float64(sample.TotalActualSeconds), cohortMeanSeconds),
		SuggestedCause: &cause,
		Recommendations: []string{
			"Compare this unit's scope against others in the cohort",
			"Check for blockers or rework recorded on this unit",
		},
	}, true
}

// IncreasingTrend inspects an owner's recent completion totals, newest
// first, and fires when every completion took at least as long as the one
// before it and the overall growth meets the minimum increase. Fewer than
// TrendSamples completions, any dip, or a zero oldest total all disqualify.
func (r *Rules) IncreasingTrend(ownerID uuid.UUID, totals []models.OwnerTotal) (*models.DetectedPattern, bool) {
	if len(totals) < r.params.TrendSamples {
		return nil, false
	}
	totals = totals[:r.params.TrendSamples]

	// totals[0] is the newest completion. A run is increasing when each
	// older entry is <= the one after it; equal totals keep the run alive.
	for i := 0; i+1 < len(totals); i++ {
		if totals[i+1].TotalActualSeconds > totals[i].TotalActualSeconds {
			return nil, false
		}
	}

	newest := float64(totals[0].TotalActualSeconds)
	oldest := float64(totals[len(totals)-1].TotalActualSeconds)
	if oldest <= 0 {
		return nil, false
	}
	increasePercent := (newest - oldest) / oldest * 100
	if increasePercent < r.params.TrendMinIncreasePercent {
		return nil, false
	}

	unitIDs := make([]string, len(totals))
	for i, t := range totals {
		unitIDs[i] = t.UnitID
	}

	ratio := newest / oldest
	owner := ownerID
	cause := "completion times have grown across consecutive units"
	return &models.DetectedPattern{
		PatternClass:    models.PatternClassIncreasingTrend,
		Severity:        models.SeverityWarning,
		OwnerID:         &owner,
		AffectedUnitIDs: unitIDs,
		ExcessRatio:     &ratio,
		Confidence:      trendConfidence,
		Description: fmt.Sprintf("execution time for owner %s increased %.1f%% across the last %d completed units",
			ownerID, increasePercent, len(totals)),
		SuggestedCause: &cause,
		Recommendations: []string{
			"Check whether recent units carry growing scope",
			"Look for accumulating environment or tooling slowdowns",
		},
	}, true
}
