package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/detect"
	"github.com/insightqa/insight-engine/pkg/metrics"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/repositories"
)

// DetectionService runs the rule set against one completed unit of work.
type DetectionService interface {
	// AnalyzeUnit evaluates all rules for the unit, persists any detected
	// patterns and generates their alerts. Rules fail independently; the
	// returned error joins per-rule failures and never hides persisted
	// patterns.
	AnalyzeUnit(ctx context.Context, unitID string) ([]*models.DetectedPattern, error)
}

// DetectionOptions collect the thresholds and timeouts for one service.
type DetectionOptions struct {
	Params       detect.Params
	CohortWindow time.Duration
	RuleTimeout  time.Duration
}

type detectionService struct {
	timing   repositories.TimingRepository
	patterns repositories.PatternRepository
	alerts   AlertService
	matcher  *RecurrenceMatcher
	rules    *detect.Rules
	opts     DetectionOptions
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewDetectionService(
	timing repositories.TimingRepository,
	patterns repositories.PatternRepository,
	alerts AlertService,
	matcher *RecurrenceMatcher,
	opts DetectionOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) DetectionService {
	return &detectionService{
		timing:   timing,
		patterns: patterns,
		alerts:   alerts,
		matcher:  matcher,
		rules:    detect.NewRules(opts.Params),
		opts:     opts,
		metrics:  m,
		logger:   logger.Named("detection"),
	}
}

var _ DetectionService = (*detectionService)(nil)

func (s *detectionService) AnalyzeUnit(ctx context.Context, unitID string) ([]*models.DetectedPattern, error) {
	sample, err := s.timing.GetSample(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timing sample for %s: %w", unitID, err)
	}

	detectedAt := time.Now()

	rules := []struct {
		name string
		run  func(ctx context.Context) (*models.DetectedPattern, error)
	}{
		{"step_excess", func(ctx context.Context) (*models.DetectedPattern, error) {
			pattern, ok := s.rules.StepExcess(sample)
			if !ok {
				return nil, nil
			}
			return pattern, nil
		}},
		{"cohort_excess", func(ctx context.Context) (*models.DetectedPattern, error) {
			return s.runCohortExcess(ctx, sample)
		}},
		{"increasing_trend", func(ctx context.Context) (*models.DetectedPattern, error) {
			return s.runIncreasingTrend(ctx, sample)
		}},
	}

	var (
		detected []*models.DetectedPattern
		errs     []error
	)
	for _, rule := range rules {
		ruleCtx, cancel := context.WithTimeout(ctx, s.opts.RuleTimeout)
		pattern, err := rule.run(ruleCtx)
		cancel()
		if err != nil {
			s.metrics.DetectionFailures.WithLabelValues(rule.name).Inc()
			s.logger.Error("rule evaluation failed",
				zap.String("rule", rule.name),
				zap.String("unit_id", unitID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", rule.name, err))
			continue
		}
		if pattern == nil {
			continue
		}

		s.matcher.Annotate(ctx, pattern, detectedAt)

		if err := s.patterns.CreatePattern(ctx, pattern); err != nil {
			s.metrics.DetectionFailures.WithLabelValues(rule.name).Inc()
			s.logger.Error("failed to persist detected pattern",
				zap.String("rule", rule.name),
				zap.String("unit_id", unitID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", rule.name, err))
			continue
		}
		s.metrics.PatternsDetected.WithLabelValues(pattern.PatternClass).Inc()

		if _, err := s.alerts.GenerateForPattern(ctx, pattern); err != nil {
			// Pattern is in; the reconcile sweep recreates the alert.
			s.logger.Warn("alert generation failed, leaving pattern for reconcile",
				zap.String("pattern_id", pattern.ID.String()),
				zap.Error(err))
		}

		detected = append(detected, pattern)
	}

	return detected, errors.Join(errs...)
}

func (s *detectionService) runCohortExcess(ctx context.Context, sample *models.TimingSample) (*models.DetectedPattern, error) {
	since := sample.CompletedAt.Add(-s.opts.CohortWindow)
	mean, err := s.timing.CohortMeanTotalSeconds(ctx, sample.CohortID, sample.UnitID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cohort baseline: %w", err)
	}

	pattern, ok := s.rules.CohortExcess(sample, mean)
	if !ok {
		return nil, nil
	}
	return pattern, nil
}

func (s *detectionService) runIncreasingTrend(ctx context.Context, sample *models.TimingSample) (*models.DetectedPattern, error) {
	if sample.OwnerID == nil {
		return nil, nil
	}

	totals, err := s.timing.RecentTotalsForOwner(ctx, *sample.OwnerID, s.opts.Params.TrendSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner history: %w", err)
	}

	pattern, ok := s.rules.IncreasingTrend(*sample.OwnerID, totals)
	if !ok {
		return nil, nil
	}
	return pattern, nil
}
