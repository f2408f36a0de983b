package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/database"
	"github.com/insightqa/insight-engine/pkg/models"
)

const defaultPageLimit = 50

// PatternRepository provides data access for detected patterns.
// Patterns are never deleted; resolution only annotates the row.
type PatternRepository interface {
	CreatePattern(ctx context.Context, pattern *models.DetectedPattern) error
	GetPatternByID(ctx context.Context, patternID uuid.UUID) (*models.DetectedPattern, error)
	ListPatterns(ctx context.Context, filters models.PatternFilters) ([]*models.DetectedPattern, int, error)
	ResolvePattern(ctx context.Context, patternID uuid.UUID, notes *string) (*models.DetectedPattern, error)
	GetPatternSummary(ctx context.Context, filters models.PatternFilters) (*models.PatternSummary, error)
	ListRecentByClass(ctx context.Context, patternClass string, before time.Time, limit int) ([]*models.DetectedPattern, error)
	ListPatternsWithoutAlerts(ctx context.Context, limit int) ([]*models.DetectedPattern, error)
}

type patternRepository struct {
	db *database.DB
}

func NewPatternRepository(db *database.DB) PatternRepository {
	return &patternRepository{db: db}
}

var _ PatternRepository = (*patternRepository)(nil)

const patternColumns = `id, pattern_class, severity, owner_id, affected_unit_ids,
       excess_ratio, confidence, description, suggested_cause, recommendations,
       is_recurring, recurrence_count, last_occurred_at,
       resolved, resolved_at, resolution_notes, created_at`

func (r *patternRepository) CreatePattern(ctx context.Context, pattern *models.DetectedPattern) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO detected_patterns (
			pattern_class, severity, owner_id, affected_unit_ids,
			excess_ratio, confidence, description, suggested_cause, recommendations,
			is_recurring, recurrence_count, last_occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		pattern.PatternClass, pattern.Severity, pattern.OwnerID, pattern.AffectedUnitIDs,
		pattern.ExcessRatio, pattern.Confidence, pattern.Description, pattern.SuggestedCause,
		pattern.Recommendations, pattern.IsRecurring, pattern.RecurrenceCount, pattern.LastOccurredAt,
	).Scan(&pattern.ID, &pattern.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	return nil
}

func (r *patternRepository) GetPatternByID(ctx context.Context, patternID uuid.UUID) (*models.DetectedPattern, error) {
	row := r.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM detected_patterns
		WHERE id = $1`, patternColumns), patternID)

	pattern, err := scanPatternRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}

	return pattern, nil
}

func (r *patternRepository) ListPatterns(ctx context.Context, filters models.PatternFilters) ([]*models.DetectedPattern, int, error) {
	limit, offset := normalizePageParams(filters.Limit, filters.Offset)

	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filters.PatternClass != "" {
		conditions = append(conditions, fmt.Sprintf("pattern_class = $%d", argIdx))
		args = append(args, filters.PatternClass)
		argIdx++
	}
	if filters.Resolved != nil {
		conditions = append(conditions, fmt.Sprintf("resolved = $%d", argIdx))
		args = append(args, *filters.Resolved)
		argIdx++
	}
	if filters.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, *filters.OwnerID)
		argIdx++
	}
	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.Since)
		argIdx++
	}
	if filters.Until != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filters.Until)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM detected_patterns WHERE %s`, where)
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count patterns: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM detected_patterns
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, patternColumns, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	patterns, err := collectPatterns(rows)
	if err != nil {
		return nil, 0, err
	}

	return patterns, total, nil
}

func (r *patternRepository) ResolvePattern(ctx context.Context, patternID uuid.UUID, notes *string) (*models.DetectedPattern, error) {
	// COALESCE keeps the original resolution time on repeat calls; only
	// the notes are overwritten.
	row := r.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE detected_patterns
		SET resolved = TRUE,
		    resolved_at = COALESCE(resolved_at, NOW()),
		    resolution_notes = $2
		WHERE id = $1
		RETURNING %s`, patternColumns), patternID, notes)

	pattern, err := scanPatternRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve pattern: %w", err)
	}

	return pattern, nil
}

func (r *patternRepository) GetPatternSummary(ctx context.Context, filters models.PatternFilters) (*models.PatternSummary, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.Since)
		argIdx++
	}
	if filters.Until != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filters.Until)
		argIdx++
	}
	if filters.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, *filters.OwnerID)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT pattern_class, severity, resolved, is_recurring, COUNT(*)
		FROM detected_patterns
		WHERE %s
		GROUP BY pattern_class, severity, resolved, is_recurring`, where)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize patterns: %w", err)
	}
	defer rows.Close()

	summary := &models.PatternSummary{
		ByClass:    make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for rows.Next() {
		var (
			class, severity       string
			resolved, isRecurring bool
			count                 int
		)
		if err := rows.Scan(&class, &severity, &resolved, &isRecurring, &count); err != nil {
			return nil, fmt.Errorf("failed to scan pattern summary: %w", err)
		}
		summary.Total += count
		if resolved {
			summary.Resolved += count
		} else {
			summary.Unresolved += count
		}
		if isRecurring {
			summary.Recurring += count
		}
		summary.ByClass[class] += count
		summary.BySeverity[severity] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern summary: %w", err)
	}

	return summary, nil
}

func (r *patternRepository) ListRecentByClass(ctx context.Context, patternClass string, before time.Time, limit int) ([]*models.DetectedPattern, error) {
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM detected_patterns
		WHERE pattern_class = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3`, patternColumns), patternClass, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent patterns: %w", err)
	}
	defer rows.Close()

	return collectPatterns(rows)
}

func (r *patternRepository) ListPatternsWithoutAlerts(ctx context.Context, limit int) ([]*models.DetectedPattern, error) {
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM detected_patterns p
		WHERE NOT EXISTS (SELECT 1 FROM alerts a WHERE a.pattern_id = p.id)
		ORDER BY created_at ASC
		LIMIT $1`, qualifyPatternColumns("p")), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns without alerts: %w", err)
	}
	defer rows.Close()

	return collectPatterns(rows)
}

func qualifyPatternColumns(alias string) string {
	cols := strings.Split(patternColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func normalizePageParams(limit, offset int) (int, int) {
	if limit <= 0 || limit > defaultPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func collectPatterns(rows pgx.Rows) ([]*models.DetectedPattern, error) {
	var patterns []*models.DetectedPattern
	for rows.Next() {
		pattern, err := scanPatternRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}
	return patterns, nil
}

func scanPatternRow(row pgx.Row) (*models.DetectedPattern, error) {
	pattern := &models.DetectedPattern{}
	err := row.Scan(
		&pattern.ID, &pattern.PatternClass, &pattern.Severity, &pattern.OwnerID,
		&pattern.AffectedUnitIDs, &pattern.ExcessRatio, &pattern.Confidence,
		&pattern.Description, &pattern.SuggestedCause, &pattern.Recommendations,
		&pattern.IsRecurring, &pattern.RecurrenceCount, &pattern.LastOccurredAt,
		&pattern.Resolved, &pattern.ResolvedAt, &pattern.ResolutionNotes,
		&pattern.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pattern, nil
}
