package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/insightqa/insight-engine/pkg/detect"
	"github.com/insightqa/insight-engine/pkg/metrics"
	"github.com/insightqa/insight-engine/pkg/models"
)

func newDetectionServiceForTest(timing *mockTimingRepo, patterns *mockPatternRepo, alerts *mockAlertRepo) DetectionService {
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()
	return NewDetectionService(
		timing,
		patterns,
		NewAlertService(alerts, patterns, m, logger),
		NewRecurrenceMatcher(patterns, logger),
		DetectionOptions{
			Params:       detect.DefaultParams(),
			CohortWindow: 30 * 24 * time.Hour,
			RuleTimeout:  5 * time.Second,
		},
		m,
		logger,
	)
}

func trendingSample(owner uuid.UUID) *models.TimingSample {
	return &models.TimingSample{
		UnitID:   "TC-100",
		CohortID: "suite-auth",
		OwnerID:  &owner,
		Steps: []models.StepTiming{
			{Name: "login", ActualSeconds: 200, EstimatedSeconds: 100},
		},
		TotalActualSeconds:    500,
		TotalEstimatedSeconds: 100,
		CompletedAt:           time.Now(),
	}
}

func trendingTotals() []models.OwnerTotal {
	return []models.OwnerTotal{
		{UnitID: "TC-100", TotalActualSeconds: 500},
		{UnitID: "TC-99", TotalActualSeconds: 450},
		{UnitID: "TC-98", TotalActualSeconds: 400},
		{UnitID: "TC-97", TotalActualSeconds: 350},
		{UnitID: "TC-96", TotalActualSeconds: 300},
	}
}

func TestAnalyzeUnit_AllRulesFire(t *testing.T) {
	owner := uuid.New()
	timing := &mockTimingRepo{
		sample:     trendingSample(owner),
		cohortMean: 250,
		totals:     trendingTotals(),
	}
	patterns := &mockPatternRepo{}
	alerts := newMockAlertRepo()
	svc := newDetectionServiceForTest(timing, patterns, alerts)

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-100")
	require.NoError(t, err)
	require.Len(t, detected, 3)

	classes := make(map[string]bool)
	for _, p := range detected {
		classes[p.PatternClass] = true
		require.NotEqual(t, uuid.Nil, p.ID)

		alert, err := alerts.GetAlertByPatternID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Severity, alert.Severity)
	}
	assert.True(t, classes[models.PatternClassStepExcess])
	assert.True(t, classes[models.PatternClassTicketExcess])
	assert.True(t, classes[models.PatternClassIncreasingTrend])
}

func TestAnalyzeUnit_SampleMissing(t *testing.T) {
	timing := &mockTimingRepo{sampleErr: errors.New("no sample")}
	svc := newDetectionServiceForTest(timing, &mockPatternRepo{}, newMockAlertRepo())

	_, err := svc.AnalyzeUnit(context.Background(), "TC-missing")
	assert.Error(t, err)
}

func TestAnalyzeUnit_RuleFailureIsolated(t *testing.T) {
	owner := uuid.New()
	timing := &mockTimingRepo{
		sample:     trendingSample(owner),
		cohortMean: 250,
		totalsErr:  errors.New("history unavailable"),
	}
	patterns := &mockPatternRepo{}
	svc := newDetectionServiceForTest(timing, patterns, newMockAlertRepo())

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-100")

	// The trend rule failed but the other two still produced patterns.
	require.Len(t, detected, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increasing_trend")
}

func TestAnalyzeUnit_HistoryFaultLoggedAsError(t *testing.T) {
	owner := uuid.New()
	timing := &mockTimingRepo{
		sample:    trendingSample(owner),
		cohortErr: errors.New("cohort query timeout"),
		totals:    trendingTotals(),
	}
	patterns := &mockPatternRepo{}
	alerts := newMockAlertRepo()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	m := metrics.New(prometheus.NewRegistry())
	svc := NewDetectionService(
		timing,
		patterns,
		NewAlertService(alerts, patterns, m, logger),
		NewRecurrenceMatcher(patterns, logger),
		DetectionOptions{
			Params:       detect.DefaultParams(),
			CohortWindow: 30 * 24 * time.Hour,
			RuleTimeout:  5 * time.Second,
		},
		m,
		logger,
	)

	_, err := svc.AnalyzeUnit(context.Background(), "TC-100")
	require.Error(t, err)

	// A storage fault during history fetch is an operational failure, not
	// data absence, and must surface at error level with the rule and unit.
	entries := logs.FilterMessage("rule evaluation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "cohort_excess", fields["rule"])
	assert.Equal(t, "TC-100", fields["unit_id"])
}

func TestAnalyzeUnit_NoOwnerSkipsTrend(t *testing.T) {
	sample := trendingSample(uuid.New())
	sample.OwnerID = nil
	timing := &mockTimingRepo{sample: sample, cohortMean: 250}
	svc := newDetectionServiceForTest(timing, &mockPatternRepo{}, newMockAlertRepo())

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-100")
	require.NoError(t, err)

	for _, p := range detected {
		assert.NotEqual(t, models.PatternClassIncreasingTrend, p.PatternClass)
	}
}

func TestAnalyzeUnit_QuietSampleDetectsNothing(t *testing.T) {
	owner := uuid.New()
	timing := &mockTimingRepo{
		sample: &models.TimingSample{
			UnitID:   "TC-ok",
			CohortID: "suite-auth",
			OwnerID:  &owner,
			Steps: []models.StepTiming{
				{Name: "login", ActualSeconds: 100, EstimatedSeconds: 100},
			},
			TotalActualSeconds:    100,
			TotalEstimatedSeconds: 100,
			CompletedAt:           time.Now(),
		},
		cohortMean: 100,
		totals:     []models.OwnerTotal{{UnitID: "TC-ok", TotalActualSeconds: 100}},
	}
	patterns := &mockPatternRepo{}
	svc := newDetectionServiceForTest(timing, patterns, newMockAlertRepo())

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-ok")
	require.NoError(t, err)
	assert.Empty(t, detected)
	assert.Empty(t, patterns.created)
}

func TestAnalyzeUnit_AlertFailureKeepsPattern(t *testing.T) {
	owner := uuid.New()
	timing := &mockTimingRepo{
		sample:     trendingSample(owner),
		cohortMean: 250,
		totals:     trendingTotals(),
	}
	patterns := &mockPatternRepo{}
	alerts := newMockAlertRepo()
	alerts.createErr = errors.New("alert store down")
	svc := newDetectionServiceForTest(timing, patterns, alerts)

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-100")

	// Alert failures are deferred to the reconcile sweep, not surfaced.
	require.NoError(t, err)
	assert.Len(t, detected, 3)
	assert.Len(t, patterns.created, 3)
}

func TestAnalyzeUnit_RecurrenceAnnotated(t *testing.T) {
	owner := uuid.New()
	prior := &models.DetectedPattern{
		ID:              uuid.New(),
		PatternClass:    models.PatternClassStepExcess,
		Severity:        models.SeverityWarning,
		AffectedUnitIDs: []string{"TC-100"},
		Description:     "earlier excess on the same unit",
		CreatedAt:       time.Now().Add(-24 * time.Hour),
	}

	timing := &mockTimingRepo{sample: trendingSample(owner)}
	patterns := &mockPatternRepo{recent: []*models.DetectedPattern{prior}}
	svc := newDetectionServiceForTest(timing, patterns, newMockAlertRepo())

	detected, err := svc.AnalyzeUnit(context.Background(), "TC-100")
	require.NoError(t, err)

	var stepExcess *models.DetectedPattern
	for _, p := range detected {
		if p.PatternClass == models.PatternClassStepExcess {
			stepExcess = p
		}
	}
	require.NotNil(t, stepExcess)
	assert.True(t, stepExcess.IsRecurring)
	assert.Equal(t, 1, stepExcess.RecurrenceCount)
	require.NotNil(t, stepExcess.LastOccurredAt)
	assert.True(t, stepExcess.LastOccurredAt.Equal(prior.CreatedAt))
}
