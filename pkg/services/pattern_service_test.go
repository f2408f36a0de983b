package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightqa/insight-engine/pkg/apperrors"
	"github.com/insightqa/insight-engine/pkg/models"
)

func TestListPatterns_RejectsUnknownClass(t *testing.T) {
	svc := NewPatternService(&mockPatternRepo{})

	_, _, err := svc.ListPatterns(context.Background(), models.PatternFilters{
		PatternClass: "slow_steps",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestListPatterns_RejectsInvertedRange(t *testing.T) {
	svc := NewPatternService(&mockPatternRepo{})

	since := time.Now()
	until := since.Add(-time.Hour)
	_, _, err := svc.ListPatterns(context.Background(), models.PatternFilters{
		Since: &since,
		Until: &until,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestListPatterns_ValidFiltersPassThrough(t *testing.T) {
	repo := &mockPatternRepo{}
	pattern := &models.DetectedPattern{PatternClass: models.PatternClassStepExcess, AffectedUnitIDs: []string{"TC-1"}}
	require.NoError(t, repo.CreatePattern(context.Background(), pattern))

	svc := NewPatternService(repo)
	patterns, total, err := svc.ListPatterns(context.Background(), models.PatternFilters{
		PatternClass: models.PatternClassStepExcess,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, patterns, 1)
}

func TestGetSummary_RejectsInvertedRange(t *testing.T) {
	svc := NewPatternService(&mockPatternRepo{})

	since := time.Now()
	until := since.Add(-time.Hour)
	_, err := svc.GetSummary(context.Background(), models.PatternFilters{
		Since: &since,
		Until: &until,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
}
