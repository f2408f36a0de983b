package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/repositories"
)

type mockTimingRepo struct {
	sample     *models.TimingSample
	sampleErr  error
	cohortMean float64
	cohortErr  error
	totals     []models.OwnerTotal
	totalsErr  error
}

var _ repositories.TimingRepository = (*mockTimingRepo)(nil)

func (m *mockTimingRepo) SaveSample(ctx context.Context, sample *models.TimingSample) error {
	return nil
}

func (m *mockTimingRepo) GetSample(ctx context.Context, unitID string) (*models.TimingSample, error) {
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}
	return m.sample, nil
}

func (m *mockTimingRepo) CohortMeanTotalSeconds(ctx context.Context, cohortID, excludeUnitID string, since time.Time) (float64, error) {
	return m.cohortMean, m.cohortErr
}

func (m *mockTimingRepo) RecentTotalsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.OwnerTotal, error) {
	if m.totalsErr != nil {
		return nil, m.totalsErr
	}
	if len(m.totals) > limit {
		return m.totals[:limit], nil
	}
	return m.totals, nil
}

type mockPatternRepo struct {
	created   []*models.DetectedPattern
	createErr error
	recent    []*models.DetectedPattern
	recentErr error
	orphans   []*models.DetectedPattern
}

var _ repositories.PatternRepository = (*mockPatternRepo)(nil)

func (m *mockPatternRepo) CreatePattern(ctx context.Context, pattern *models.DetectedPattern) error {
	if m.createErr != nil {
		return m.createErr
	}
	pattern.ID = uuid.New()
	pattern.CreatedAt = time.Now()
	m.created = append(m.created, pattern)
	return nil
}

func (m *mockPatternRepo) GetPatternByID(ctx context.Context, patternID uuid.UUID) (*models.DetectedPattern, error) {
	for _, p := range m.created {
		if p.ID == patternID {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPatternRepo) ListPatterns(ctx context.Context, filters models.PatternFilters) ([]*models.DetectedPattern, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockPatternRepo) ResolvePattern(ctx context.Context, patternID uuid.UUID, notes *string) (*models.DetectedPattern, error) {
	pattern, err := m.GetPatternByID(ctx, patternID)
	if err != nil {
		return nil, err
	}
	pattern.Resolved = true
	pattern.ResolutionNotes = notes
	return pattern, nil
}

func (m *mockPatternRepo) GetPatternSummary(ctx context.Context, filters models.PatternFilters) (*models.PatternSummary, error) {
	return &models.PatternSummary{Total: len(m.created)}, nil
}

func (m *mockPatternRepo) ListRecentByClass(ctx context.Context, patternClass string, before time.Time, limit int) ([]*models.DetectedPattern, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	var out []*models.DetectedPattern
	for _, p := range m.recent {
		if p.PatternClass == patternClass {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPatternRepo) ListPatternsWithoutAlerts(ctx context.Context, limit int) ([]*models.DetectedPattern, error) {
	return m.orphans, nil
}

type mockAlertRepo struct {
	alerts    map[uuid.UUID]*models.Alert
	createErr error
}

var _ repositories.AlertRepository = (*mockAlertRepo)(nil)

func newMockAlertRepo() *mockAlertRepo {
	return &mockAlertRepo{alerts: make(map[uuid.UUID]*models.Alert)}
}

func (m *mockAlertRepo) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if existing, ok := m.alerts[alert.PatternID]; ok {
		return existing, nil
	}
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now()
	m.alerts[alert.PatternID] = alert
	return alert, nil
}

func (m *mockAlertRepo) GetAlertByPatternID(ctx context.Context, patternID uuid.UUID) (*models.Alert, error) {
	if alert, ok := m.alerts[patternID]; ok {
		return alert, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAlertRepo) ListUnreadAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range m.alerts {
		if !a.IsRead && !a.IsDismissed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAlertRepo) UnreadAlertCount(ctx context.Context) (int, error) {
	alerts, _ := m.ListUnreadAlerts(ctx, 0)
	return len(alerts), nil
}

func (m *mockAlertRepo) MarkAlertRead(ctx context.Context, alertID uuid.UUID) error {
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.IsRead = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockAlertRepo) DismissAlert(ctx context.Context, alertID uuid.UUID) error {
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.IsDismissed = true
			now := time.Now()
			a.DismissedAt = &now
			return nil
		}
	}
	return apperrors.ErrNotFound
}
