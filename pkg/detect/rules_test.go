package detect

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightqa/insight-engine/pkg/models"
)

func sampleWithSteps(steps ...models.StepTiming) *models.TimingSample {
	var total, estimated int64
	for _, s := range steps {
		total += s.ActualSeconds
		estimated += s.EstimatedSeconds
	}
	return &models.TimingSample{
		UnitID:                "TC-101",
		CohortID:              "suite-auth",
		Steps:                 steps,
		TotalActualSeconds:    total,
		TotalEstimatedSeconds: estimated,
		CompletedAt:           time.Now(),
	}
}

func TestStepExcess_FiresAboveThreshold(t *testing.T) {
	rules := NewRules(DefaultParams())

	sample := sampleWithSteps(
		models.StepTiming{Name: "login", ActualSeconds: 100, EstimatedSeconds: 100},
		models.StepTiming{Name: "checkout", ActualSeconds: 180, EstimatedSeconds: 100},
	)

	pattern, ok := rules.StepExcess(sample)
	require.True(t, ok)
	assert.Equal(t, models.PatternClassStepExcess, pattern.PatternClass)
	assert.Equal(t, models.SeverityWarning, pattern.Severity)
	assert.Equal(t, []string{"TC-101"}, pattern.AffectedUnitIDs)
	require.NotNil(t, pattern.ExcessRatio)
	assert.InDelta(t, 1.8, *pattern.ExcessRatio, 1e-9)
	assert.InDelta(t, 0.8, pattern.Confidence, 1e-9)
	assert.Contains(t, pattern.Description, "checkout")
	require.Len(t, pattern.Recommendations, 2)
	assert.Contains(t, pattern.Recommendations[0], "Review step estimates")
	assert.Contains(t, pattern.Recommendations[1], "splitting complex steps")
}

func TestStepExcess_ExactThresholdDoesNotFire(t *testing.T) {
	rules := NewRules(DefaultParams())

	sample := sampleWithSteps(
		models.StepTiming{Name: "login", ActualSeconds: 150, EstimatedSeconds: 100},
	)

	_, ok := rules.StepExcess(sample)
	assert.False(t, ok)
}

func TestStepExcess_SkipsMissingEstimates(t *testing.T) {
	rules := NewRules(DefaultParams())

	// Huge actuals, but no usable estimate. The rule must stay silent
	// rather than divide by zero or flag unestimated work.
	sample := sampleWithSteps(
		models.StepTiming{Name: "setup", ActualSeconds: 9000, EstimatedSeconds: 0},
		models.StepTiming{Name: "teardown", ActualSeconds: 9000, EstimatedSeconds: -5},
	)

	_, ok := rules.StepExcess(sample)
	assert.False(t, ok)
}

func TestStepExcess_MeanRatioDrivesSeverity(t *testing.T) {
	rules := NewRules(DefaultParams())

	// Ratios 3.0 and 2.2, mean 2.6 > 2.0: critical.
	sample := sampleWithSteps(
		models.StepTiming{Name: "a", ActualSeconds: 300, EstimatedSeconds: 100},
		models.StepTiming{Name: "b", ActualSeconds: 220, EstimatedSeconds: 100},
	)

	pattern, ok := rules.StepExcess(sample)
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, pattern.Severity)
	assert.InDelta(t, 2.6, *pattern.ExcessRatio, 1e-9)
}

func TestStepExcess_OnlyFlaggedStepsCountTowardMean(t *testing.T) {
	rules := NewRules(DefaultParams())

	// The 1.0x step is under threshold and must not dilute the mean.
	sample := sampleWithSteps(
		models.StepTiming{Name: "fast", ActualSeconds: 100, EstimatedSeconds: 100},
		models.StepTiming{Name: "slow", ActualSeconds: 260, EstimatedSeconds: 100},
	)

	pattern, ok := rules.StepExcess(sample)
	require.True(t, ok)
	assert.InDelta(t, 2.6, *pattern.ExcessRatio, 1e-9)
	assert.Equal(t, models.SeverityCritical, pattern.Severity)
}

func TestCohortExcess_FiresAboveThreshold(t *testing.T) {
	rules := NewRules(DefaultParams())

	sample := sampleWithSteps(
		models.StepTiming{Name: "run", ActualSeconds: 1600, EstimatedSeconds: 1000},
	)

	pattern, ok := rules.CohortExcess(sample, 1000)
	require.True(t, ok)
	assert.Equal(t, models.PatternClassTicketExcess, pattern.PatternClass)
	require.NotNil(t, pattern.ExcessRatio)
	assert.InDelta(t, 1.6, *pattern.ExcessRatio, 1e-9)
	assert.InDelta(t, 0.7, pattern.Confidence, 1e-9)
}

func TestCohortExcess_SeverityCapped(t *testing.T) {
	rules := NewRules(DefaultParams())

	// 10x the cohort mean would be critical under the step rule, but the
	// cohort comparison never escalates past warning.
	sample := sampleWithSteps(
		models.StepTiming{Name: "run", ActualSeconds: 10000, EstimatedSeconds: 1000},
	)

	pattern, ok := rules.CohortExcess(sample, 1000)
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, pattern.Severity)
}

func TestCohortExcess_BelowThresholdDoesNotFire(t *testing.T) {
	rules := NewRules(DefaultParams())

	// 1.4x the cohort mean is slow but within tolerance.
	sample := sampleWithSteps(
		models.StepTiming{Name: "run", ActualSeconds: 1400, EstimatedSeconds: 1000},
	)

	_, ok := rules.CohortExcess(sample, 1000)
	assert.False(t, ok)
}

func TestCohortExcess_NoBaselineNoFire(t *testing.T) {
	rules := NewRules(DefaultParams())

	sample := sampleWithSteps(
		models.StepTiming{Name: "run", ActualSeconds: 10000, EstimatedSeconds: 1000},
	)

	_, ok := rules.CohortExcess(sample, 0)
	assert.False(t, ok)
}

func ownerTotals(seconds ...int64) []models.OwnerTotal {
	totals := make([]models.OwnerTotal, len(seconds))
	for i, s := range seconds {
		totals[i] = models.OwnerTotal{
			UnitID:             "TC-" + string(rune('A'+i)),
			TotalActualSeconds: s,
		}
	}
	return totals
}

func TestIncreasingTrend_FiresOnMonotoneGrowth(t *testing.T) {
	rules := NewRules(DefaultParams())
	owner := uuid.New()

	// Newest first: the most recent unit took 500s, the oldest 300s.
	pattern, ok := rules.IncreasingTrend(owner, ownerTotals(500, 450, 400, 350, 300))
	require.True(t, ok)
	assert.Equal(t, models.PatternClassIncreasingTrend, pattern.PatternClass)
	assert.Equal(t, models.SeverityWarning, pattern.Severity)
	assert.Len(t, pattern.AffectedUnitIDs, 5)
	assert.Equal(t, "TC-A", pattern.AffectedUnitIDs[0])
	require.NotNil(t, pattern.ExcessRatio)
	assert.InDelta(t, 500.0/300.0, *pattern.ExcessRatio, 1e-9)
	assert.InDelta(t, 0.75, pattern.Confidence, 1e-9)
	assert.Contains(t, pattern.Description, "66.7%")
}

func TestIncreasingTrend_DecliningTimesDoNotFire(t *testing.T) {
	rules := NewRules(DefaultParams())

	// Newest first with the newest unit fastest: times are improving.
	_, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(300, 350, 400, 450, 500))
	assert.False(t, ok)
}

func TestIncreasingTrend_TiesKeepRunAlive(t *testing.T) {
	rules := NewRules(DefaultParams())

	pattern, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(500, 400, 400, 350, 300))
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, pattern.Severity)
}

func TestIncreasingTrend_DipBreaksRun(t *testing.T) {
	rules := NewRules(DefaultParams())

	_, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(500, 450, 460, 350, 300))
	assert.False(t, ok)
}

func TestIncreasingTrend_BelowMinimumIncrease(t *testing.T) {
	rules := NewRules(DefaultParams())

	// Monotone but only 10% growth end to end.
	_, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(330, 320, 310, 305, 300))
	assert.False(t, ok)
}

func TestIncreasingTrend_TooFewSamples(t *testing.T) {
	rules := NewRules(DefaultParams())

	_, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(500, 400, 300))
	assert.False(t, ok)
}

func TestIncreasingTrend_ZeroOldestTotal(t *testing.T) {
	rules := NewRules(DefaultParams())

	_, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(500, 450, 400, 350, 0))
	assert.False(t, ok)
}

func TestIncreasingTrend_UsesOnlyConfiguredWindow(t *testing.T) {
	rules := NewRules(DefaultParams())

	// Extra older entries beyond the window must be ignored, including
	// the dip at position six.
	pattern, ok := rules.IncreasingTrend(uuid.New(), ownerTotals(500, 450, 400, 350, 300, 900))
	require.True(t, ok)
	assert.Len(t, pattern.AffectedUnitIDs, 5)
}
