package service

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

const (
	disqualifiedScore    = -999.0
	lastResortPenalty    = -50.0
	subjectBonus         = 2.0
	levelMatchBonus      = 5.0
	levelMismatchPenalty = -2.0
	dailyLoadWeight      = -2.0
	historyLoadWeight    = -1.0
	termLoadWeight       = -0.5
)

// Chooser returns an index in [0, n). It breaks ties between equally scored candidates.
type Chooser func(n int) int

// ScoringContext carries the read-only inputs of one scoring run.
type ScoringContext struct {
	Roster *models.Roster
	// History holds finalized and in-flight substitutions.
	History []models.SubstitutionHistoryEntry
	// Absent is every teacher on leave for the day being scored.
	Absent map[string]struct{}
	// LeaveDays maps a teacher to the weekdays they have recorded leave on.
	LeaveDays map[string]map[string]struct{}
}

// CandidateScore is the score of one eligible substitute.
type CandidateScore struct {
	TeacherID string  `json:"teacher_id"`
	Score     float64 `json:"score"`
}

// SubstituteScorer picks substitutes for absence periods.
type SubstituteScorer struct {
	choose Chooser
	logger *zap.Logger
}

// NewSubstituteScorer constructs the scorer. A nil chooser falls back to math/rand.
func NewSubstituteScorer(choose Chooser, logger *zap.Logger) *SubstituteScorer {
	if choose == nil {
		choose = rand.Intn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstituteScorer{choose: choose, logger: logger}
}

// ScoreAndSelect returns the best substitute for a single period, or nil when nobody is eligible.
func (s *SubstituteScorer) ScoreAndSelect(period models.AbsencePeriod, sc *ScoringContext) (*string, error) {
	if err := validateAbsencePeriod(period); err != nil {
		return nil, err
	}
	if err := validateScoringContext(sc); err != nil {
		return nil, err
	}
	idx := newScoringIndex(sc)
	return s.selectBest(idx, period, sc), nil
}

// scoreCandidates lists every available, non-absent candidate with its score, best first.
func (s *SubstituteScorer) scoreCandidates(period models.AbsencePeriod, sc *ScoringContext) ([]CandidateScore, error) {
	if err := validateAbsencePeriod(period); err != nil {
		return nil, err
	}
	if err := validateScoringContext(sc); err != nil {
		return nil, err
	}
	scores := newScoringIndex(sc).score(period, sc)
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score == scores[j].Score {
			return scores[i].TeacherID < scores[j].TeacherID
		}
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// AssignDay scores every absence period of a day in order and always emits one
// record per period. Substitutes chosen earlier in the run are folded into the
// history so they cannot be double-booked later in the same run.
func (s *SubstituteScorer) AssignDay(day string, periods []models.AbsencePeriod, sc *ScoringContext) ([]models.PendingAssignment, error) {
	if day == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day is required")
	}
	if err := validateScoringContext(sc); err != nil {
		return nil, err
	}
	for _, period := range periods {
		if err := validateAbsencePeriod(period); err != nil {
			return nil, err
		}
		if period.Day != day {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("absence period %s belongs to %s, not %s", period.Key(), period.Day, day))
		}
	}

	idx := newScoringIndex(sc)
	records := make([]models.PendingAssignment, 0, len(periods))
	for _, period := range periods {
		substitute := s.selectBest(idx, period, sc)
		record := models.PendingAssignment{
			Date:                period.Date,
			AbsentTeacherID:     period.TeacherID,
			Day:                 period.Day,
			Period:              period.Period,
			ClassID:             period.ClassID,
			SubjectID:           period.SubjectID,
			SubstituteTeacherID: substitute,
			Notes:               period.Reason,
			Status:              models.AssignmentStatusPending,
		}
		if entry, ok := models.HistoryFromAssignment(record); ok {
			idx.addHistory(entry)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *SubstituteScorer) selectBest(idx *scoringIndex, period models.AbsencePeriod, sc *ScoringContext) *string {
	scores := idx.score(period, sc)
	best := disqualifiedScore
	tied := make([]string, 0, 4)
	for _, candidate := range scores {
		switch {
		case candidate.Score > best:
			best = candidate.Score
			tied = append(tied[:0], candidate.TeacherID)
		case candidate.Score == best && best > disqualifiedScore:
			tied = append(tied, candidate.TeacherID)
		}
	}
	if len(tied) == 0 {
		s.logger.Sugar().Debugw("no substitute available", "key", period.Key().String(), "class", period.ClassID)
		return nil
	}
	choice := tied[0]
	if len(tied) > 1 {
		choice = tied[s.choose(len(tied))]
	}
	s.logger.Sugar().Debugw("substitute selected", "key", period.Key().String(), "substitute", choice, "score", best, "tied", len(tied))
	return &choice
}

type slotKey struct {
	Day    string
	Period int
}

type datedSlotKey struct {
	Date   string
	Day    string
	Period int
}

// scoringIndex holds per-run lookups derived from the roster and history.
type scoringIndex struct {
	candidates   []string
	busy         map[slotKey]map[string]struct{}
	dailyLoad    map[string]map[string]int
	termLoad     map[string]int
	historyBusy  map[datedSlotKey]map[string]struct{}
	historyCount map[string]int
}

func newScoringIndex(sc *ScoringContext) *scoringIndex {
	idx := &scoringIndex{
		candidates:   sc.Roster.TeacherIDs(),
		busy:         make(map[slotKey]map[string]struct{}),
		dailyLoad:    make(map[string]map[string]int),
		termLoad:     make(map[string]int),
		historyBusy:  make(map[datedSlotKey]map[string]struct{}),
		historyCount: make(map[string]int),
	}
	for _, entry := range sc.Roster.Schedule {
		key := slotKey{Day: entry.Day, Period: entry.Period}
		if idx.busy[key] == nil {
			idx.busy[key] = make(map[string]struct{})
		}
		idx.busy[key][entry.TeacherID] = struct{}{}

		if idx.dailyLoad[entry.TeacherID] == nil {
			idx.dailyLoad[entry.TeacherID] = make(map[string]int)
		}
		idx.dailyLoad[entry.TeacherID][entry.Day]++

		if _, onLeave := sc.LeaveDays[entry.TeacherID][entry.Day]; !onLeave {
			idx.termLoad[entry.TeacherID]++
		}
	}
	for _, entry := range sc.History {
		idx.addHistory(entry)
	}
	return idx
}

func (idx *scoringIndex) addHistory(entry models.SubstitutionHistoryEntry) {
	key := datedSlotKey{Date: entry.Date, Day: entry.Day, Period: entry.Period}
	if idx.historyBusy[key] == nil {
		idx.historyBusy[key] = make(map[string]struct{})
	}
	idx.historyBusy[key][entry.TeacherID] = struct{}{}
	idx.historyCount[entry.TeacherID]++
}

func (idx *scoringIndex) available(teacherID string, period models.AbsencePeriod) bool {
	if _, taken := idx.busy[slotKey{Day: period.Day, Period: period.Period}][teacherID]; taken {
		return false
	}
	for _, date := range []string{period.Date, ""} {
		if _, taken := idx.historyBusy[datedSlotKey{Date: date, Day: period.Day, Period: period.Period}][teacherID]; taken {
			return false
		}
	}
	return true
}

func (idx *scoringIndex) score(period models.AbsencePeriod, sc *ScoringContext) []CandidateScore {
	level := sc.Roster.LevelOf(period.ClassID)
	scores := make([]CandidateScore, 0, len(idx.candidates))
	for _, teacherID := range idx.candidates {
		if !idx.available(teacherID, period) {
			continue
		}
		if _, absent := sc.Absent[teacherID]; absent {
			continue
		}

		score := 0.0
		if _, fallback := sc.Roster.LastResort[teacherID]; fallback {
			score += lastResortPenalty
		}
		profile := sc.Roster.Profiles[teacherID]
		if profile.CanTeachSubject(period.SubjectID) {
			score += subjectBonus
		}
		if profile.TeachesLevel(level) {
			score += levelMatchBonus
		} else {
			score += levelMismatchPenalty
		}
		score += dailyLoadWeight * float64(idx.dailyLoad[teacherID][period.Day])
		score += historyLoadWeight * float64(idx.historyCount[teacherID])
		score += termLoadWeight * float64(idx.termLoad[teacherID])

		scores = append(scores, CandidateScore{TeacherID: teacherID, Score: score})
	}
	return scores
}

func validateAbsencePeriod(period models.AbsencePeriod) error {
	switch {
	case period.TeacherID == "":
		return appErrors.Clone(appErrors.ErrValidation, "absence period: teacher_id is required")
	case period.SubjectID == "":
		return appErrors.Clone(appErrors.ErrValidation, "absence period: subject_id is required")
	case period.Day == "":
		return appErrors.Clone(appErrors.ErrValidation, "absence period: day is required")
	case period.ClassID == "":
		return appErrors.Clone(appErrors.ErrValidation, "absence period: class_id is required")
	case period.Period < 1:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("absence period: period must be >= 1, got %d", period.Period))
	}
	return nil
}

func validateScoringContext(sc *ScoringContext) error {
	if sc == nil || sc.Roster == nil {
		return appErrors.Clone(appErrors.ErrValidation, "scoring context requires a roster")
	}
	return nil
}
