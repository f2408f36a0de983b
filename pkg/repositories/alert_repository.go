package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/database"
	"github.com/insightqa/insight-engine/pkg/models"
)

// AlertRepository provides data access for generated alerts.
type AlertRepository interface {
	// CreateAlert inserts the alert unless one already exists for the same
	// pattern, in which case the existing row is returned unchanged.
	CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	GetAlertByPatternID(ctx context.Context, patternID uuid.UUID) (*models.Alert, error)
	ListUnreadAlerts(ctx context.Context, limit int) ([]*models.Alert, error)
	UnreadAlertCount(ctx context.Context) (int, error)
	MarkAlertRead(ctx context.Context, alertID uuid.UUID) error
	DismissAlert(ctx context.Context, alertID uuid.UUID) error
}

type alertRepository struct {
	db *database.DB
}

func NewAlertRepository(db *database.DB) AlertRepository {
	return &alertRepository{db: db}
}

var _ AlertRepository = (*alertRepository)(nil)

const alertColumns = `id, pattern_id, pattern_class, severity, title, message,
       affected_unit_ids, suggested_actions, is_read, is_dismissed, dismissed_at, created_at`

func (r *alertRepository) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	// The pattern_id UNIQUE constraint makes this a no-op on repeat runs.
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO alerts (
			pattern_id, pattern_class, severity, title, message,
			affected_unit_ids, suggested_actions
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pattern_id) DO NOTHING`,
		alert.PatternID, alert.PatternClass, alert.Severity, alert.Title,
		alert.Message, alert.AffectedUnitIDs, alert.SuggestedActions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	// Re-read so callers always get the canonical row, whether this call
	// inserted it or an earlier one did.
	return r.GetAlertByPatternID(ctx, alert.PatternID)
}

func (r *alertRepository) GetAlertByPatternID(ctx context.Context, patternID uuid.UUID) (*models.Alert, error) {
	row := r.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE pattern_id = $1`, alertColumns), patternID)

	alert, err := scanAlertRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

func (r *alertRepository) ListUnreadAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > defaultPageLimit {
		limit = defaultPageLimit
	}

	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE NOT is_read AND NOT is_dismissed
		ORDER BY CASE severity
		           WHEN 'critical' THEN 1
		           WHEN 'warning' THEN 2
		           ELSE 3
		         END,
		         created_at DESC
		LIMIT $1`, alertColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

func (r *alertRepository) UnreadAlertCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM alerts
		WHERE NOT is_read AND NOT is_dismissed`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return count, nil
}

func (r *alertRepository) MarkAlertRead(ctx context.Context, alertID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE alerts
		SET is_read = TRUE
		WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *alertRepository) DismissAlert(ctx context.Context, alertID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE alerts
		SET is_dismissed = TRUE,
		    dismissed_at = COALESCE(dismissed_at, NOW())
		WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to dismiss alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanAlertRow(row pgx.Row) (*models.Alert, error) {
	alert := &models.Alert{}
	err := row.Scan(
		&alert.ID, &alert.PatternID, &alert.PatternClass, &alert.Severity,
		&alert.Title, &alert.Message, &alert.AffectedUnitIDs, &alert.SuggestedActions,
		&alert.IsRead, &alert.IsDismissed, &alert.DismissedAt, &alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return alert, nil
}
