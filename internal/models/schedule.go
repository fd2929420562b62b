package models

import (
	"sort"
	"strconv"
	"strings"
)

// Weekdays lists the teaching days in calendar order.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// ScheduleEntry is one row of the fixed weekly timetable.
type ScheduleEntry struct {
	TeacherID string `db:"teacher_id" json:"teacher_id" yaml:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	Day       string `db:"day" json:"day" yaml:"day"`
	Period    int    `db:"period" json:"period" yaml:"period"`
	ClassID   string `db:"class_id" json:"class_id" yaml:"class_id"`
}

// LevelCategory groups classes by school stage.
type LevelCategory string

const (
	LevelLowerElementary LevelCategory = "lower_elementary"
	LevelUpperElementary LevelCategory = "upper_elementary"
	LevelMiddle          LevelCategory = "middle"
	LevelUnknown         LevelCategory = "unknown"
)

// ClassifyClassLevel derives the level of a Thai class code such as "ป.4" or "ม.2".
func ClassifyClassLevel(classID string) LevelCategory {
	switch {
	case strings.HasPrefix(classID, "ป."):
		grade, err := strconv.Atoi(strings.TrimPrefix(classID, "ป."))
		if err != nil {
			return LevelUnknown
		}
		if grade <= 3 {
			return LevelLowerElementary
		}
		return LevelUpperElementary
	case strings.HasPrefix(classID, "ม."):
		return LevelMiddle
	default:
		return LevelUnknown
	}
}

// TeacherProfile lists what a teacher is qualified to cover.
type TeacherProfile struct {
	TeacherID string
	Subjects  map[string]struct{}
	Levels    map[LevelCategory]struct{}
}

// CanTeachSubject reports whether the subject appears in the teacher's own timetable.
func (p TeacherProfile) CanTeachSubject(subjectID string) bool {
	_, ok := p.Subjects[subjectID]
	return ok
}

// TeachesLevel reports whether the teacher already teaches classes of the level.
func (p TeacherProfile) TeachesLevel(level LevelCategory) bool {
	_, ok := p.Levels[level]
	return ok
}

// BuildTeacherProfiles derives qualification sets from the timetable.
func BuildTeacherProfiles(schedule []ScheduleEntry, classLevels map[string]LevelCategory) map[string]TeacherProfile {
	profiles := make(map[string]TeacherProfile)
	for _, entry := range schedule {
		profile, ok := profiles[entry.TeacherID]
		if !ok {
			profile = TeacherProfile{
				TeacherID: entry.TeacherID,
				Subjects:  make(map[string]struct{}),
				Levels:    make(map[LevelCategory]struct{}),
			}
		}
		profile.Subjects[entry.SubjectID] = struct{}{}
		level, ok := classLevels[entry.ClassID]
		if !ok {
			level = ClassifyClassLevel(entry.ClassID)
		}
		profile.Levels[level] = struct{}{}
		profiles[entry.TeacherID] = profile
	}
	return profiles
}

// Roster bundles the read-only lookup tables for one term.
type Roster struct {
	Schedule     []ScheduleEntry
	NameToID     map[string]string
	FullNames    map[string]string
	SubjectNames map[string]string
	ClassLevels  map[string]LevelCategory
	LastResort   map[string]struct{}
	Profiles     map[string]TeacherProfile
}

// TeacherIDs returns every teacher that appears in the timetable, sorted.
func (r *Roster) TeacherIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, entry := range r.Schedule {
		if _, ok := seen[entry.TeacherID]; ok {
			continue
		}
		seen[entry.TeacherID] = struct{}{}
		ids = append(ids, entry.TeacherID)
	}
	sort.Strings(ids)
	return ids
}

// DisplayName returns the full name for a teacher ID, falling back to the ID.
func (r *Roster) DisplayName(teacherID string) string {
	if r != nil {
		if name, ok := r.FullNames[teacherID]; ok && name != "" {
			return name
		}
	}
	return teacherID
}

// SubjectName returns the localised subject label, falling back to the ID.
func (r *Roster) SubjectName(subjectID string) string {
	if r != nil {
		if name, ok := r.SubjectNames[subjectID]; ok && name != "" {
			return name
		}
	}
	return subjectID
}

// LevelOf resolves the level category of a class.
func (r *Roster) LevelOf(classID string) LevelCategory {
	if r != nil {
		if level, ok := r.ClassLevels[classID]; ok {
			return level
		}
	}
	return ClassifyClassLevel(classID)
}
