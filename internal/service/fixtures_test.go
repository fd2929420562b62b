package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/namematch"
)

const reportDate = "2025-11-28"

const editedReport = `[REPORT] 2025-11-28

📝 รายงานผลการจัดหาครูสอนแทน 📝
ประจำวันที่ 28 พฤศจิกายน 2568
==============================

สรุปผล:
👩‍🏫 ครูที่ลา: 2 ท่าน
📚 จำนวนคาบทั้งหมด: 5 คาบ
✅ หาครูสอนแทนได้: 5/5 (100.0%)

ตารางสอนแทน:

วันศุกร์:
  คาบที่ 1:
    - วิชาคณิตศาสตร์ (ป.1): ครูอำพร (ลา) ➡️ ครูสุจิตร (สอนแทน)
    - วิชาภาษาไทย (ป.2): ครูกฤตชยากร (ลา) ➡️ ครูพิมล (สอนแทน)
  คาบที่ 2:
    - วิชาคณิตศาสตร์ (ป.3): ครูอำพร (ลา) ➡️ ครูจรรยาภรณ์ (สอนแทน)
  คาบที่ 3:
    - วิชาวิทยาศาสตร์ (ป.4): ครูกฤตชยากร (ลา) ➡️ ครูปาณิสรา (สอนแทน)
  คาบที่ 4:
    - วิชาภาษาอังกฤษ (ป.5): ครูอำพร (ลา) ➡️ ครูวิยะดา (สอนแทน)
==============================
`

func teacherNameMap() map[string]string {
	return map[string]string{
		"ครูสุกฤษฎิ์":        "T001",
		"ครูอำพร":          "T002",
		"ครูกฤตชยากร":      "T003",
		"ครูพิมล":          "T004",
		"ครูสุจิตร":         "T005",
		"ครูปาณิสรา":        "T006",
		"ครูวิยะดา":         "T007",
		"ครูดวงใจ":         "T008",
		"ครูสุขุมาภรณ์":      "T009",
		"ครูพัฒนศักดิ์":       "T010",
		"ครูบัวลอย":         "T011",
		"ครูอภิชญา":         "T012",
		"ครูสรัญญา":         "T013",
		"ครูณัฏฐเศรษฐาวิชญ์": "T014",
		"ครูจุฑารัตน์":        "T015",
		"ครูจิตยาภรณ์":       "T016",
		"ครูจรรยาภรณ์":       "T017",
		"ครูสิทธิศักดิ์":       "T018",
	}
}

func strPtr(s string) *string {
	return &s
}

func pendingRow(absent string, period int, classID, subject string, substitute *string) models.PendingAssignment {
	return models.PendingAssignment{
		ID:                  absent + "-" + classID,
		Date:                reportDate,
		AbsentTeacherID:     absent,
		Day:                 "Fri",
		Period:              period,
		ClassID:             classID,
		SubjectID:           subject,
		SubstituteTeacherID: substitute,
		Status:              models.AssignmentStatusPending,
	}
}

// editedReportPending is the store state the edited report was generated from,
// before the admin swapped the first period substitute.
func editedReportPending() []models.PendingAssignment {
	return []models.PendingAssignment{
		pendingRow("T002", 1, "ป.1", "MATH", strPtr("T017")),
		pendingRow("T003", 1, "ป.2", "THAI", strPtr("T004")),
		pendingRow("T002", 2, "ป.3", "MATH", strPtr("T017")),
		pendingRow("T003", 3, "ป.4", "SCI", strPtr("T006")),
		pendingRow("T002", 4, "ป.5", "ENG", strPtr("T007")),
	}
}

// stubModel answers from a fixed table and counts calls.
type stubModel struct {
	mu      sync.Mutex
	answers map[string]namematch.Result
	err     error
	block   bool
	calls   int
}

func (s *stubModel) MatchName(ctx context.Context, name string, candidates []string) (*namematch.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	answer, ok := s.answers[name]
	if !ok {
		return &namematch.Result{}, nil
	}
	return &answer, nil
}

func newTestNameMatcher(model ModelNameMatcher) *NameMatcher {
	return NewNameMatcher(teacherNameMap(), model, NameMatcherConfig{}, nil, nil)
}

// memoryPendingStore mimics the pending table: rows keep their status and only
// pending rows can be updated or deleted.
type memoryPendingStore struct {
	mu         sync.Mutex
	rows       []models.PendingAssignment
	failDelete map[models.CompositeKey]bool
}

func newMemoryPendingStore(rows ...models.PendingAssignment) *memoryPendingStore {
	return &memoryPendingStore{rows: rows, failDelete: map[models.CompositeKey]bool{}}
}

func (m *memoryPendingStore) CreateBatch(_ context.Context, records []models.PendingAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		for _, row := range m.rows {
			if row.Key() == record.Key() {
				return errors.New("duplicate key " + record.Key().String())
			}
		}
	}
	m.rows = append(m.rows, records...)
	return nil
}

func (m *memoryPendingStore) ListByDateStatus(_ context.Context, date string, status models.AssignmentStatus) ([]models.PendingAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PendingAssignment, 0)
	for _, row := range m.rows {
		if row.Date == date && (status == "" || row.Status == status) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryPendingStore) ListByStatus(_ context.Context, status models.AssignmentStatus) ([]models.PendingAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PendingAssignment, 0)
	for _, row := range m.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}

func (m *memoryPendingStore) UpdateSubstitute(_ context.Context, key models.CompositeKey, substituteID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Key() == key && m.rows[i].Status == models.AssignmentStatusPending {
			m.rows[i].SubstituteTeacherID = substituteID
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryPendingStore) DeleteByKey(_ context.Context, key models.CompositeKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[key] {
		return errors.New("delete failed")
	}
	for i := range m.rows {
		if m.rows[i].Key() == key && m.rows[i].Status == models.AssignmentStatusPending {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryPendingStore) MarkExpired(_ context.Context, createdBefore, processedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i := range m.rows {
		if m.rows[i].Status == models.AssignmentStatusPending && m.rows[i].CreatedAt.Before(createdBefore) {
			m.rows[i].Status = models.AssignmentStatusExpired
			at := processedAt
			m.rows[i].ProcessedAt = &at
			count++
		}
	}
	return count, nil
}

func (m *memoryPendingStore) find(key models.CompositeKey) (models.PendingAssignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Key() == key {
			return row, true
		}
	}
	return models.PendingAssignment{}, false
}

// memoryLedger is append-only; re-appending a key is a no-op.
type memoryLedger struct {
	mu         sync.Mutex
	records    map[models.CompositeKey]models.FinalizedAssignment
	failAppend map[models.CompositeKey]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: map[models.CompositeKey]models.FinalizedAssignment{}, failAppend: map[models.CompositeKey]bool{}}
}

func (l *memoryLedger) Append(_ context.Context, record models.FinalizedAssignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppend[record.Key()] {
		return errors.New("append failed")
	}
	if _, exists := l.records[record.Key()]; !exists {
		l.records[record.Key()] = record
	}
	return nil
}
