package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/repositories"
)

// PatternService exposes pattern queries and the resolution lifecycle.
type PatternService interface {
	ListPatterns(ctx context.Context, filters models.PatternFilters) ([]*models.DetectedPattern, int, error)
	GetPattern(ctx context.Context, patternID uuid.UUID) (*models.DetectedPattern, error)
	ResolvePattern(ctx context.Context, patternID uuid.UUID, notes *string) (*models.DetectedPattern, error)
	GetSummary(ctx context.Context, filters models.PatternFilters) (*models.PatternSummary, error)
}

type patternService struct {
	patterns repositories.PatternRepository
}

func NewPatternService(patterns repositories.PatternRepository) PatternService {
	return &patternService{patterns: patterns}
}

var _ PatternService = (*patternService)(nil)

func (s *patternService) ListPatterns(ctx context.Context, filters models.PatternFilters) ([]*models.DetectedPattern, int, error) {
	if filters.PatternClass != "" && !models.ValidPatternClass(filters.PatternClass) {
		return nil, 0, fmt.Errorf("%w: unknown pattern class %q", apperrors.ErrInvalid, filters.PatternClass)
	}
	if filters.Since != nil && filters.Until != nil && filters.Until.Before(*filters.Since) {
		return nil, 0, fmt.Errorf("%w: until precedes since", apperrors.ErrInvalid)
	}
	return s.patterns.ListPatterns(ctx, filters)
}

func (s *patternService) GetPattern(ctx context.Context, patternID uuid.UUID) (*models.DetectedPattern, error) {
	return s.patterns.GetPatternByID(ctx, patternID)
}

func (s *patternService) ResolvePattern(ctx context.Context, patternID uuid.UUID, notes *string) (*models.DetectedPattern, error) {
	return s.patterns.ResolvePattern(ctx, patternID, notes)
}

func (s *patternService) GetSummary(ctx context.Context, filters models.PatternFilters) (*models.PatternSummary, error) {
	if filters.Since != nil && filters.Until != nil && filters.Until.Before(*filters.Since) {
		return nil, fmt.Errorf("%w: until precedes since", apperrors.ErrInvalid)
	}
	return s.patterns.GetPatternSummary(ctx, filters)
}
