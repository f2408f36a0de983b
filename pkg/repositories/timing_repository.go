package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/database"
	"github.com/insightqa/insight-engine/pkg/models"
)

// TimingRepository reads the timing facts written by the workflow engine.
// The detection service treats this data as read-only; SaveSample exists
// for ingestion and tests.
type TimingRepository interface {
	SaveSample(ctx context.Context, sample *models.TimingSample) error
	GetSample(ctx context.Context, unitID string) (*models.TimingSample, error)
	// CohortMeanTotalSeconds averages completion totals across the cohort,
	// excluding the unit under analysis. Returns 0 when no history exists.
	CohortMeanTotalSeconds(ctx context.Context, cohortID string, excludeUnitID string, since time.Time) (float64, error)
	// RecentTotalsForOwner returns the owner's latest completion totals,
	// newest first.
	RecentTotalsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.OwnerTotal, error)
}

type timingRepository struct {
	db *database.DB
}

func NewTimingRepository(db *database.DB) TimingRepository {
	return &timingRepository{db: db}
}

var _ TimingRepository = (*timingRepository)(nil)

func (r *timingRepository) SaveSample(ctx context.Context, sample *models.TimingSample) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO timing_samples (
			unit_id, cohort_id, owner_id,
			total_actual_seconds, total_estimated_seconds, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit_id) DO UPDATE SET
			cohort_id = EXCLUDED.cohort_id,
			owner_id = EXCLUDED.owner_id,
			total_actual_seconds = EXCLUDED.total_actual_seconds,
			total_estimated_seconds = EXCLUDED.total_estimated_seconds,
			completed_at = EXCLUDED.completed_at`,
		sample.UnitID, sample.CohortID, sample.OwnerID,
		sample.TotalActualSeconds, sample.TotalEstimatedSeconds, sample.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save timing sample: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM timing_sample_steps WHERE unit_id = $1`, sample.UnitID); err != nil {
		return fmt.Errorf("failed to clear sample steps: %w", err)
	}
	for i, step := range sample.Steps {
		_, err := tx.Exec(ctx, `
			INSERT INTO timing_sample_steps (
				unit_id, step_index, step_name, actual_seconds, estimated_seconds
			) VALUES ($1, $2, $3, $4, $5)`,
			sample.UnitID, i, step.Name, step.ActualSeconds, step.EstimatedSeconds,
		)
		if err != nil {
			return fmt.Errorf("failed to save sample step: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit timing sample: %w", err)
	}

	return nil
}

func (r *timingRepository) GetSample(ctx context.Context, unitID string) (*models.TimingSample, error) {
	sample := &models.TimingSample{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT unit_id, cohort_id, owner_id,
		       total_actual_seconds, total_estimated_seconds, completed_at
		FROM timing_samples
		WHERE unit_id = $1`, unitID).Scan(
		&sample.UnitID, &sample.CohortID, &sample.OwnerID,
		&sample.TotalActualSeconds, &sample.TotalEstimatedSeconds, &sample.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get timing sample: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT step_name, actual_seconds, estimated_seconds
		FROM timing_sample_steps
		WHERE unit_id = $1
		ORDER BY step_index`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sample steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step models.StepTiming
		if err := rows.Scan(&step.Name, &step.ActualSeconds, &step.EstimatedSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan sample step: %w", err)
		}
		sample.Steps = append(sample.Steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample steps: %w", err)
	}

	return sample, nil
}

func (r *timingRepository) CohortMeanTotalSeconds(ctx context.Context, cohortID string, excludeUnitID string, since time.Time) (float64, error) {
	var mean float64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(total_actual_seconds), 0)
		FROM timing_samples
		WHERE cohort_id = $1
		  AND unit_id <> $2
		  AND completed_at >= $3`, cohortID, excludeUnitID, since).Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("failed to compute cohort mean: %w", err)
	}
	return mean, nil
}

func (r *timingRepository) RecentTotalsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.OwnerTotal, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT unit_id, total_actual_seconds
		FROM timing_samples
		WHERE owner_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner totals: %w", err)
	}
	defer rows.Close()

	var totals []models.OwnerTotal
	for rows.Next() {
		var t models.OwnerTotal
		if err := rows.Scan(&t.UnitID, &t.TotalActualSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan owner total: %w", err)
		}
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owner totals: %w", err)
	}

	return totals, nil
}
