// Package roster loads the term timetable and canonical teacher names from YAML.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Teacher is one entry of the teachers list.
type Teacher struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	FullName   string `yaml:"full_name"`
	LastResort bool   `yaml:"last_resort"`
}

// File mirrors the roster YAML document.
type File struct {
	Teachers    []Teacher              `yaml:"teachers"`
	Subjects    map[string]string      `yaml:"subjects"`
	ClassLevels map[string]string      `yaml:"class_levels"`
	Schedule    []models.ScheduleEntry `yaml:"schedule"`
}

// Load reads and validates a roster file.
func Load(path string) (*models.Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates roster YAML. Unknown keys are rejected.
func Parse(raw []byte) (*models.Roster, error) {
	var doc File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return Build(doc)
}

// Build validates a decoded document and derives the lookup tables.
func Build(doc File) (*models.Roster, error) {
	if len(doc.Teachers) == 0 {
		return nil, errors.New("roster has no teachers")
	}

	var problems []string
	known := make(map[string]struct{}, len(doc.Teachers))
	nameToID := make(map[string]string, len(doc.Teachers)*2)
	fullNames := make(map[string]string, len(doc.Teachers))
	lastResort := make(map[string]struct{})

	addName := func(name, id string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if owner, ok := nameToID[name]; ok && owner != id {
			problems = append(problems, fmt.Sprintf("name %q used by %s and %s", name, owner, id))
			return
		}
		nameToID[name] = id
	}

	for i, t := range doc.Teachers {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("teachers[%d]: id is required", i))
			continue
		}
		if _, dup := known[id]; dup {
			problems = append(problems, fmt.Sprintf("teachers[%d]: duplicate id %s", i, id))
			continue
		}
		if strings.TrimSpace(t.Name) == "" && strings.TrimSpace(t.FullName) == "" {
			problems = append(problems, fmt.Sprintf("teachers[%d]: %s needs a name", i, id))
		}
		known[id] = struct{}{}
		addName(t.Name, id)
		addName(t.FullName, id)

		full := strings.TrimSpace(t.FullName)
		if full == "" {
			full = strings.TrimSpace(t.Name)
		}
		fullNames[id] = full
		if t.LastResort {
			lastResort[id] = struct{}{}
		}
	}

	classLevels := make(map[string]models.LevelCategory, len(doc.ClassLevels))
	for classID, raw := range doc.ClassLevels {
		level := models.LevelCategory(raw)
		switch level {
		case models.LevelLowerElementary, models.LevelUpperElementary, models.LevelMiddle:
			classLevels[classID] = level
		default:
			problems = append(problems, fmt.Sprintf("class_levels[%s]: unknown level %q", classID, raw))
		}
	}

	days := make(map[string]struct{}, len(models.Weekdays))
	for _, d := range models.Weekdays {
		days[d] = struct{}{}
	}
	slots := make(map[string]struct{}, len(doc.Schedule))
	for i, entry := range doc.Schedule {
		if _, ok := known[entry.TeacherID]; !ok {
			problems = append(problems, fmt.Sprintf("schedule[%d]: unknown teacher %q", i, entry.TeacherID))
		}
		if _, ok := days[entry.Day]; !ok {
			problems = append(problems, fmt.Sprintf("schedule[%d]: unknown day %q", i, entry.Day))
		}
		if entry.Period < 1 {
			problems = append(problems, fmt.Sprintf("schedule[%d]: period must be >= 1", i))
		}
		if entry.SubjectID == "" || entry.ClassID == "" {
			problems = append(problems, fmt.Sprintf("schedule[%d]: subject_id and class_id are required", i))
		}
		slot := fmt.Sprintf("%s/%s/%d", entry.TeacherID, entry.Day, entry.Period)
		if _, dup := slots[slot]; dup {
			problems = append(problems, fmt.Sprintf("schedule[%d]: %s is booked twice", i, slot))
		}
		slots[slot] = struct{}{}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid roster: %s", strings.Join(problems, "; "))
	}

	subjects := make(map[string]string, len(doc.Subjects))
	for id, name := range doc.Subjects {
		subjects[id] = name
	}

	return &models.Roster{
		Schedule:     doc.Schedule,
		NameToID:     nameToID,
		FullNames:    fullNames,
		SubjectNames: subjects,
		ClassLevels:  classLevels,
		LastResort:   lastResort,
		Profiles:     models.BuildTeacherProfiles(doc.Schedule, classLevels),
	}, nil
}

// OverrideLastResort replaces the last-resort set when ids is non-empty.
func OverrideLastResort(r *models.Roster, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.FullNames[id]; !ok {
			return fmt.Errorf("last resort teacher %s is not in the roster", id)
		}
		set[id] = struct{}{}
	}
	r.LastResort = set
	return nil
}
