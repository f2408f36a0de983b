package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/models"
	"github.com/insightqa/insight-engine/pkg/repositories"
)

// recurrenceWindow is how many prior patterns of the same class are
// inspected when deciding whether a new pattern is a repeat.
const recurrenceWindow = 50

// Relater decides whether two patterns describe the same underlying problem.
type Relater interface {
	Related(candidate, prior *models.DetectedPattern) bool
}

// keyPhraseRelater relates patterns of the same class that either touch a
// common unit or whose candidate key phrase appears in the prior's
// description.
type keyPhraseRelater struct{}

var _ Relater = keyPhraseRelater{}

func (keyPhraseRelater) Related(candidate, prior *models.DetectedPattern) bool {
	if candidate.PatternClass != prior.PatternClass {
		return false
	}

	priorUnits := make(map[string]bool, len(prior.AffectedUnitIDs))
	for _, id := range prior.AffectedUnitIDs {
		priorUnits[id] = true
	}
	for _, id := range candidate.AffectedUnitIDs {
		if priorUnits[id] {
			return true
		}
	}

	phrase := keyPhrase(candidate.Description)
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(prior.Description), phrase)
}

var keyPhraseStopWords = map[string]bool{
	"than": true, "that": true, "this": true, "with": true,
	"from": true, "have": true, "been": true, "were": true,
	"will": true, "took": true, "more": true, "over": true,
}

// keyPhrase extracts up to the first three significant words of a
// description: lowercased, longer than three characters, stop words
// removed. Empty when the description has no significant words.
func keyPhrase(description string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(description)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		if len(w) <= 3 || keyPhraseStopWords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	return strings.Join(words, " ")
}

// RecurrenceMatcher annotates freshly detected patterns with how often the
// same problem showed up before.
type RecurrenceMatcher struct {
	patterns repositories.PatternRepository
	relater  Relater
	logger   *zap.Logger
}

func NewRecurrenceMatcher(patterns repositories.PatternRepository, logger *zap.Logger) *RecurrenceMatcher {
	return &RecurrenceMatcher{
		patterns: patterns,
		relater:  keyPhraseRelater{},
		logger:   logger.Named("recurrence"),
	}
}

// Annotate sets IsRecurring, RecurrenceCount and LastOccurredAt on the
// candidate by matching it against recent prior patterns of the same class.
// A lookup failure leaves the candidate non-recurring; detection must not
// fail because history was unavailable.
func (m *RecurrenceMatcher) Annotate(ctx context.Context, candidate *models.DetectedPattern, detectedAt time.Time) {
	priors, err := m.patterns.ListRecentByClass(ctx, candidate.PatternClass, detectedAt, recurrenceWindow)
	if err != nil {
		m.logger.Warn("recurrence lookup failed, treating pattern as first occurrence",
			zap.String("pattern_class", candidate.PatternClass),
			zap.Error(err))
		return
	}

	count := 0
	var last *time.Time
	for _, prior := range priors {
		if !m.relater.Related(candidate, prior) {
			continue
		}
		count++
		if last == nil || prior.CreatedAt.After(*last) {
			t := prior.CreatedAt
			last = &t
		}
	}

	candidate.IsRecurring = count > 0
	candidate.RecurrenceCount = count
	candidate.LastOccurredAt = last
}
