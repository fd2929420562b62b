package models

import (
	"sort"
	"time"
)

// AbsenceRequest is a structured leave notice for one teacher on one date.
type AbsenceRequest struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      string    `db:"absence_date" json:"date"`
	Day       string    `db:"day" json:"day"`
	Periods   []int     `db:"-" json:"periods"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AbsencePeriod is a single taught period that needs cover.
type AbsencePeriod struct {
	Date      string `json:"date"`
	TeacherID string `json:"teacher_id"`
	Day       string `json:"day"`
	Period    int    `json:"period"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
	Reason    string `json:"reason,omitempty"`
}

// Key returns the composite key identifying this absence period.
func (p AbsencePeriod) Key() CompositeKey {
	return CompositeKey{Date: p.Date, AbsentTeacherID: p.TeacherID, Day: p.Day, Period: p.Period}
}

// ExpandAbsence turns a request into one AbsencePeriod per requested period the
// teacher actually teaches. Periods with no class are dropped.
func ExpandAbsence(req AbsenceRequest, schedule []ScheduleEntry) []AbsencePeriod {
	periods := uniqueSorted(req.Periods)
	result := make([]AbsencePeriod, 0, len(periods))
	for _, period := range periods {
		for _, entry := range schedule {
			if entry.TeacherID != req.TeacherID || entry.Day != req.Day || entry.Period != period {
				continue
			}
			result = append(result, AbsencePeriod{
				Date:      req.Date,
				TeacherID: req.TeacherID,
				Day:       req.Day,
				Period:    period,
				ClassID:   entry.ClassID,
				SubjectID: entry.SubjectID,
				Reason:    req.Reason,
			})
			// the composite key admits one class per slot
			break
		}
	}
	return result
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
