package models

import (
	"fmt"
	"time"
)

// NoSubstituteLabel is how a missing substitute is rendered in reports and exports.
const NoSubstituteLabel = "Not Found"

// CompositeKey uniquely identifies one absence period across the pipeline.
type CompositeKey struct {
	Date            string `json:"date"`
	AbsentTeacherID string `json:"absent_teacher_id"`
	Day             string `json:"day"`
	Period          int    `json:"period"`
}

// String renders the key for logs and error messages.
func (k CompositeKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", k.Date, k.AbsentTeacherID, k.Day, k.Period)
}

// AssignmentStatus tracks the lifecycle of a proposed substitution.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusFinalized AssignmentStatus = "finalized"
	AssignmentStatusExpired   AssignmentStatus = "expired"
)

// Terminal reports whether no further transition is allowed from the status.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentStatusFinalized || s == AssignmentStatusExpired
}

// CanTransitionTo enforces pending -> finalized and pending -> expired only.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	if s != AssignmentStatusPending {
		return false
	}
	return next == AssignmentStatusFinalized || next == AssignmentStatusExpired
}

// PendingAssignment is a proposed substitution awaiting admin verification.
type PendingAssignment struct {
	ID                  string           `db:"id" json:"id"`
	Date                string           `db:"assignment_date" json:"date"`
	AbsentTeacherID     string           `db:"absent_teacher_id" json:"absent_teacher_id"`
	Day                 string           `db:"day" json:"day"`
	Period              int              `db:"period" json:"period"`
	ClassID             string           `db:"class_id" json:"class_id"`
	SubjectID           string           `db:"subject_id" json:"subject_id"`
	SubstituteTeacherID *string          `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	Notes               string           `db:"notes" json:"notes"`
	Status              AssignmentStatus `db:"status" json:"status"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	ProcessedAt         *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
}

// Key returns the composite key of the assignment.
func (a PendingAssignment) Key() CompositeKey {
	return CompositeKey{Date: a.Date, AbsentTeacherID: a.AbsentTeacherID, Day: a.Day, Period: a.Period}
}

// HasSubstitute reports whether a substitute was found.
func (a PendingAssignment) HasSubstitute() bool {
	return a.SubstituteTeacherID != nil && *a.SubstituteTeacherID != ""
}

// SubstituteLabel returns the substitute ID or NoSubstituteLabel.
func (a PendingAssignment) SubstituteLabel() string {
	if !a.HasSubstitute() {
		return NoSubstituteLabel
	}
	return *a.SubstituteTeacherID
}

// FinalizedAssignment is an immutable ledger row.
type FinalizedAssignment struct {
	PendingAssignment
	VerifiedBy string    `db:"verified_by" json:"verified_by"`
	VerifiedAt time.Time `db:"verified_at" json:"verified_at"`
}

// SubstitutionHistoryEntry is a past or in-flight substitution seen from the substitute's side.
type SubstitutionHistoryEntry struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	Date      string `db:"assignment_date" json:"date,omitempty"`
	Day       string `db:"day" json:"day"`
	Period    int    `db:"period" json:"period"`
	ClassID   string `db:"class_id" json:"class_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// HistoryFromAssignment converts an assignment with a substitute into a history entry.
func HistoryFromAssignment(a PendingAssignment) (SubstitutionHistoryEntry, bool) {
	if !a.HasSubstitute() {
		return SubstitutionHistoryEntry{}, false
	}
	return SubstitutionHistoryEntry{
		TeacherID: *a.SubstituteTeacherID,
		Date:      a.Date,
		Day:       a.Day,
		Period:    a.Period,
		ClassID:   a.ClassID,
		SubjectID: a.SubjectID,
	}, true
}

// FinalizeResult reports the outcome of moving a date's pending rows into the ledger.
type FinalizeResult struct {
	Date           string         `json:"date"`
	VerifiedBy     string         `json:"verified_by"`
	FinalizedCount int            `json:"finalized_count"`
	FailedCount    int            `json:"failed_count"`
	Failed         []CompositeKey `json:"failed,omitempty"`
}

// CoverageSummary counts how many absence periods received a substitute.
type CoverageSummary struct {
	AbsentTeachers int `json:"absent_teachers"`
	TotalPeriods   int `json:"total_periods"`
	Covered        int `json:"covered"`
}

// Percent returns the covered share as a percentage.
func (s CoverageSummary) Percent() float64 {
	if s.TotalPeriods == 0 {
		return 0
	}
	return float64(s.Covered) / float64(s.TotalPeriods) * 100
}

// String renders the summary as "5/6 (83.3%)".
func (s CoverageSummary) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", s.Covered, s.TotalPeriods, s.Percent())
}

// SummarizeCoverage computes coverage counts over a set of assignments.
func SummarizeCoverage(assignments []PendingAssignment) CoverageSummary {
	absent := make(map[string]struct{})
	summary := CoverageSummary{TotalPeriods: len(assignments)}
	for _, a := range assignments {
		absent[a.AbsentTeacherID] = struct{}{}
		if a.HasSubstitute() {
			summary.Covered++
		}
	}
	summary.AbsentTeachers = len(absent)
	return summary
}

// WorkloadCount is the number of finalized substitutions covered by a teacher.
type WorkloadCount struct {
	TeacherID     string `db:"teacher_id" json:"teacher_id"`
	Name          string `db:"-" json:"name"`
	Substitutions int    `db:"substitutions" json:"substitutions"`
}
