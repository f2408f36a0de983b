package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/metrics"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/repositories"
)

// reconcileBatchSize bounds how many orphaned patterns one sweep handles.
const reconcileBatchSize = 200

// AlertService turns persisted patterns into alerts and manages their
// read/dismiss lifecycle.
type AlertService interface {
	// GenerateForPattern creates the alert for a pattern. Safe to call
	// repeatedly; the existing alert is returned on repeats.
	GenerateForPattern(ctx context.Context, pattern *models.DetectedPattern) (*models.Alert, error)
	ListUnread(ctx context.Context, limit int) ([]*models.Alert, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, alertID uuid.UUID) error
	Dismiss(ctx context.Context, alertID uuid.UUID) error
	// ReconcileMissingAlerts generates alerts for patterns that lost theirs
	// to a crash between pattern insert and alert insert. Returns how many
	// alerts were created.
	ReconcileMissingAlerts(ctx context.Context) (int, error)
}

type alertService struct {
	alerts   repositories.AlertRepository
	patterns repositories.PatternRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewAlertService(
	alerts repositories.AlertRepository,
	patterns repositories.PatternRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) AlertService {
	return &alertService{
		alerts:   alerts,
		patterns: patterns,
		metrics:  m,
		logger:   logger.Named("alerts"),
	}
}

var _ AlertService = (*alertService)(nil)

func alertTitle(patternClass string) string {
	switch patternClass {
	case models.PatternClassStepExcess:
		return "Time Estimate Exceeded"
	case models.PatternClassTicketExcess:
		return "Ticket Took Longer Than Similar Work"
	case models.PatternClassIncreasingTrend:
		return "Execution Time Trending Up"
	}
	return "Pattern Detected"
}

func (s *alertService) GenerateForPattern(ctx context.Context, pattern *models.DetectedPattern) (*models.Alert, error) {
	message := pattern.Description
	alert := &models.Alert{
		PatternID:        pattern.ID,
		PatternClass:     pattern.PatternClass,
		Severity:         pattern.Severity,
		Title:            alertTitle(pattern.PatternClass),
		Message:          &message,
		AffectedUnitIDs:  pattern.AffectedUnitIDs,
		SuggestedActions: pattern.Recommendations,
	}

	created, err := s.alerts.CreateAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("failed to generate alert for pattern %s: %w", pattern.ID, err)
	}

	s.metrics.AlertsGenerated.Inc()
	return created, nil
}

func (s *alertService) ListUnread(ctx context.Context, limit int) ([]*models.Alert, error) {
	return s.alerts.ListUnreadAlerts(ctx, limit)
}

func (s *alertService) UnreadCount(ctx context.Context) (int, error) {
	return s.alerts.UnreadAlertCount(ctx)
}

func (s *alertService) MarkRead(ctx context.Context, alertID uuid.UUID) error {
	return s.alerts.MarkAlertRead(ctx, alertID)
}

func (s *alertService) Dismiss(ctx context.Context, alertID uuid.UUID) error {
	return s.alerts.DismissAlert(ctx, alertID)
}

func (s *alertService) ReconcileMissingAlerts(ctx context.Context) (int, error) {
	orphans, err := s.patterns.ListPatternsWithoutAlerts(ctx, reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find patterns without alerts: %w", err)
	}

	created := 0
	for _, pattern := range orphans {
		if _, err := s.GenerateForPattern(ctx, pattern); err != nil {
			s.logger.Warn("reconcile could not generate alert",
				zap.String("pattern_id", pattern.ID.String()),
				zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		s.logger.Info("reconciled patterns without alerts", zap.Int("created", created))
	}
	return created, nil
}
