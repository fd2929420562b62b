package models

import "strconv"

// ParsedAssignment is one assignment line read back from a report.
type ParsedAssignment struct {
	Subject               string  `json:"subject"`
	ClassID               string  `json:"class_id"`
	AbsentTeacherName     string  `json:"absent_teacher_name"`
	SubstituteTeacherName *string `json:"substitute_teacher_name"`
	Day                   string  `json:"day"`
	Period                int     `json:"period"`
}

// Context renders the assignment location for warnings.
func (p ParsedAssignment) Context() string {
	return p.Subject + " (" + p.ClassID + ") - " + p.Day + " คาบ " + strconv.Itoa(p.Period)
}

// MatchMethod names the tier that resolved a teacher name.
type MatchMethod string

const (
	MatchExact      MatchMethod = "exact"
	MatchNormalized MatchMethod = "normalized"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchAIFuzzy    MatchMethod = "ai_fuzzy"
	MatchNotFound   MatchMethod = "not_found"
)

// NameMatch is the outcome of resolving a raw name.
type NameMatch struct {
	TeacherID  string      `json:"teacher_id,omitempty"`
	Confidence float64     `json:"confidence"`
	Method     MatchMethod `json:"method"`
}

// Found reports whether the name resolved to a teacher.
func (m NameMatch) Found() bool {
	return m.TeacherID != "" && m.Method != MatchNotFound
}

// AssignmentChange is a pending row whose substitute differs from the report.
type AssignmentChange struct {
	Key             CompositeKey `json:"key"`
	ClassID         string       `json:"class_id"`
	Subject         string       `json:"subject"`
	OldSubstitute   *string      `json:"old_substitute"`
	NewSubstitute   *string      `json:"new_substitute"`
	MatchConfidence float64      `json:"match_confidence"`
	MatchMethod     MatchMethod  `json:"match_method"`
}

// AISuggestion is a low-confidence model match that needs a human decision.
type AISuggestion struct {
	Key           CompositeKey `json:"key"`
	ClassID       string       `json:"class_id"`
	Subject       string       `json:"subject"`
	SuggestedName string       `json:"suggested_name"`
	SuggestedID   string       `json:"suggested_id"`
	Confidence    float64      `json:"confidence"`
	OldSubstitute *string      `json:"old_substitute"`
}

// UnchangedAssignment is a pending row confirmed as-is by the report.
type UnchangedAssignment struct {
	Key        CompositeKey `json:"key"`
	ClassID    string       `json:"class_id"`
	Subject    string       `json:"subject"`
	Substitute *string      `json:"substitute"`
}

// UnmatchedAssignment is a parsed line with no pending row behind it.
type UnmatchedAssignment struct {
	Parsed              ParsedAssignment `json:"parsed"`
	AbsentTeacherID     string           `json:"absent_teacher_id"`
	SubstituteTeacherID *string          `json:"substitute_teacher_id"`
}

// NameMatchError is a teacher name no tier could resolve.
type NameMatchError struct {
	TeacherName string `json:"teacher_name"`
	Context     string `json:"context"`
}

// ChangeSet is the diff between an edited report and the pending store.
type ChangeSet struct {
	Updated       []AssignmentChange    `json:"updated"`
	AISuggestions []AISuggestion        `json:"ai_suggestions"`
	Unchanged     []UnchangedAssignment `json:"unchanged"`
	NotFound      []UnmatchedAssignment `json:"not_found"`
	MatchErrors   []NameMatchError      `json:"match_errors"`
}

// NewChangeSet returns a change set with empty, non-nil buckets.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Updated:       []AssignmentChange{},
		AISuggestions: []AISuggestion{},
		Unchanged:     []UnchangedAssignment{},
		NotFound:      []UnmatchedAssignment{},
		MatchErrors:   []NameMatchError{},
	}
}

// ErrorCount is the number of rows the admin must look at.
func (c *ChangeSet) ErrorCount() int {
	return len(c.NotFound) + len(c.MatchErrors)
}
