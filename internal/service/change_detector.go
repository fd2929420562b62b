package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type nameResolver interface {
	Match(ctx context.Context, raw string) models.NameMatch
}

// ChangeDetector diffs parsed report lines against the pending rows of a date.
type ChangeDetector struct {
	names     nameResolver
	threshold float64
	floor     float64
	logger    *zap.Logger
}

// NewChangeDetector builds a detector. Model matches with confidence in
// [floor, threshold) are held back as suggestions instead of applied.
func NewChangeDetector(names nameResolver, threshold, floor float64, logger *zap.Logger) *ChangeDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 0.85
	}
	if floor <= 0 {
		floor = 0.60
	}
	return &ChangeDetector{names: names, threshold: threshold, floor: floor, logger: logger}
}

// DetectChanges classifies every parsed line into exactly one bucket of the change set.
// It only reads pending; applying updates is the caller's job.
func (d *ChangeDetector) DetectChanges(ctx context.Context, date string, parsed []models.ParsedAssignment, pending []models.PendingAssignment) *models.ChangeSet {
	changes := models.NewChangeSet()

	rows := make(map[models.CompositeKey]models.PendingAssignment, len(pending))
	for _, row := range pending {
		if row.Status != "" && row.Status != models.AssignmentStatusPending {
			continue
		}
		rows[row.Key()] = row
	}

	for _, line := range parsed {
		absent := d.names.Match(ctx, line.AbsentTeacherName)
		if !absent.Found() {
			changes.MatchErrors = append(changes.MatchErrors, models.NameMatchError{
				TeacherName: line.AbsentTeacherName,
				Context:     line.Context(),
			})
			continue
		}

		var substitute *string
		subMatch := models.NameMatch{Method: models.MatchNotFound}
		if line.SubstituteTeacherName != nil {
			subMatch = d.names.Match(ctx, *line.SubstituteTeacherName)
			if !subMatch.Found() {
				changes.MatchErrors = append(changes.MatchErrors, models.NameMatchError{
					TeacherName: *line.SubstituteTeacherName,
					Context:     line.Context(),
				})
				continue
			}
			id := subMatch.TeacherID
			substitute = &id
		}

		key := models.CompositeKey{Date: date, AbsentTeacherID: absent.TeacherID, Day: line.Day, Period: line.Period}
		row, ok := rows[key]
		if !ok {
			changes.NotFound = append(changes.NotFound, models.UnmatchedAssignment{
				Parsed:              line,
				AbsentTeacherID:     absent.TeacherID,
				SubstituteTeacherID: substitute,
			})
			continue
		}

		if subMatch.Method == models.MatchAIFuzzy && subMatch.Confidence >= d.floor && subMatch.Confidence < d.threshold {
			changes.AISuggestions = append(changes.AISuggestions, models.AISuggestion{
				Key:           key,
				ClassID:       line.ClassID,
				Subject:       line.Subject,
				SuggestedName: *line.SubstituteTeacherName,
				SuggestedID:   subMatch.TeacherID,
				Confidence:    subMatch.Confidence,
				OldSubstitute: row.SubstituteTeacherID,
			})
			continue
		}

		if sameSubstitute(row.SubstituteTeacherID, substitute) {
			changes.Unchanged = append(changes.Unchanged, models.UnchangedAssignment{
				Key:        key,
				ClassID:    line.ClassID,
				Subject:    line.Subject,
				Substitute: substitute,
			})
			continue
		}

		changes.Updated = append(changes.Updated, models.AssignmentChange{
			Key:             key,
			ClassID:         line.ClassID,
			Subject:         line.Subject,
			OldSubstitute:   row.SubstituteTeacherID,
			NewSubstitute:   substitute,
			MatchConfidence: subMatch.Confidence,
			MatchMethod:     subMatch.Method,
		})
	}

	d.logger.Debug("report diffed",
		zap.String("date", date),
		zap.Int("updated", len(changes.Updated)),
		zap.Int("unchanged", len(changes.Unchanged)),
		zap.Int("ai_suggestions", len(changes.AISuggestions)),
		zap.Int("not_found", len(changes.NotFound)),
		zap.Int("match_errors", len(changes.MatchErrors)),
	)
	return changes
}

// sameSubstitute treats nil and empty as the "Not Found" sentinel.
func sameSubstitute(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	if av == models.NoSubstituteLabel {
		av = ""
	}
	if bv == models.NoSubstituteLabel {
		bv = ""
	}
	return av == bv
}
