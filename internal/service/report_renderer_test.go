package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func namedRoster(schedule []models.ScheduleEntry) *models.Roster {
	roster := newTestRoster(schedule)
	roster.NameToID = teacherNameMap()
	roster.FullNames = make(map[string]string, len(roster.NameToID))
	for name, id := range roster.NameToID {
		roster.FullNames[id] = name
	}
	roster.SubjectNames = map[string]string{
		"MATH": "คณิตศาสตร์",
		"THAI": "ภาษาไทย",
		"SCI":  "วิทยาศาสตร์",
		"ENG":  "ภาษาอังกฤษ",
		"ART":  "ศิลปะ",
	}
	return roster
}

func TestDailyReportSummaryAndLayout(t *testing.T) {
	renderer := NewReportRenderer(namedRoster(nil))
	assignments := []models.PendingAssignment{
		pendingRow("T002", 2, "ป.3", "MATH", strPtr("T017")),
		pendingRow("T002", 1, "ป.1", "MATH", strPtr("T005")),
		pendingRow("T003", 1, "ป.2", "THAI", strPtr("T004")),
		pendingRow("T003", 3, "ป.4", "SCI", strPtr("T006")),
		pendingRow("T002", 4, "ป.5", "ENG", strPtr("T007")),
		pendingRow("T003", 5, "ป.6", "SCI", nil),
	}

	report := renderer.DailyReport(reportDate, assignments)
	lines := strings.Split(report, "\n")

	assert.Equal(t, "[REPORT] 2025-11-28", lines[0])
	assert.Contains(t, report, "ประจำวันที่ 28 พฤศจิกายน 2568")
	assert.Contains(t, report, "👩‍🏫 ครูที่ลา: 2 ท่าน")
	assert.Contains(t, report, "📚 จำนวนคาบทั้งหมด: 6 คาบ")
	assert.Contains(t, report, "✅ หาครูสอนแทนได้: 5/6 (83.3%)")
	assert.Contains(t, report, "    - วิชาคณิตศาสตร์ (ป.1): ครูอำพร (ลา) ➡️ ครูสุจิตร (สอนแทน)")
	assert.Contains(t, report, "    - วิชาวิทยาศาสตร์ (ป.6): ครูกฤตชยากร (ลา) ➡️ ❌ ไม่พบครูสอนแทน")
	assert.Less(t, strings.Index(report, "คาบที่ 1:"), strings.Index(report, "คาบที่ 2:"))
}

func TestDailyReportWithoutAbsences(t *testing.T) {
	report := NewReportRenderer(namedRoster(nil)).DailyReport(reportDate, nil)
	assert.True(t, strings.HasPrefix(report, "[REPORT] 2025-11-28\n"))
	assert.Contains(t, report, "ไม่มีข้อมูลการลาในวันที่ระบุ")
}

func TestDailyReportRoundTripsThroughParser(t *testing.T) {
	renderer := NewReportRenderer(namedRoster(nil))
	pending := editedReportPending()

	report := renderer.DailyReport(reportDate, pending)
	date, err := ParseReportHeader(report)
	require.NoError(t, err)
	assert.Equal(t, reportDate, date)

	changes := newTestChangeDetector(nil).DetectChanges(context.Background(), date, mustParseReport(t, report), pending)
	assert.Empty(t, changes.Updated)
	assert.Len(t, changes.Unchanged, len(pending))
	assert.Zero(t, changes.ErrorCount())
}

func TestChangeConfirmationSections(t *testing.T) {
	renderer := NewReportRenderer(namedRoster(nil))
	key := models.CompositeKey{Date: reportDate, AbsentTeacherID: "T002", Day: "Fri", Period: 1}
	changes := models.NewChangeSet()
	changes.Updated = append(changes.Updated, models.AssignmentChange{Key: key, ClassID: "ป.1", Subject: "คณิตศาสตร์", OldSubstitute: strPtr("T017"), NewSubstitute: strPtr("T005")})
	changes.Unchanged = append(changes.Unchanged, models.UnchangedAssignment{}, models.UnchangedAssignment{})
	changes.AISuggestions = append(changes.AISuggestions, models.AISuggestion{Key: key, SuggestedName: "ซูจิด", SuggestedID: "T005", Confidence: 0.72})
	changes.MatchErrors = append(changes.MatchErrors, models.NameMatchError{TeacherName: "ครูสมหมาย", Context: "ศิลปะ (ม.1) - Fri คาบ 5"})

	message := renderer.ChangeConfirmation(reportDate, changes)
	assert.True(t, strings.HasPrefix(message, "✅ อัปเดตการสอนแทนสำเร็จ"))
	assert.Contains(t, message, "📝 การเปลี่ยนแปลง (1 คาบ):")
	assert.Contains(t, message, "- วิชาคณิตศาสตร์ (ป.1) คาบ 1:")
	assert.Contains(t, message, "เปลี่ยนจาก ครูจรรยาภรณ์ เป็น ครูสุจิตร ✅")
	assert.Contains(t, message, "✓ ไม่เปลี่ยนแปลง (2 คาบ)")
	assert.Contains(t, message, `- "ซูจิด" → คาดว่าคือ "ครูสุจิตร" (ความมั่นใจ: 72%)`)
	assert.Contains(t, message, `- ไม่พบครู "ครูสมหมาย" ในระบบ`)
}

func TestFinalizationConfirmationCounts(t *testing.T) {
	renderer := NewReportRenderer(namedRoster(nil))
	result := &models.FinalizeResult{Date: reportDate, VerifiedBy: "admin", FinalizedCount: 3, FailedCount: 1}

	message := renderer.FinalizationConfirmation(reportDate, result, nil)
	assert.Contains(t, message, "📌 บันทึกลงทะเบียนแล้ว: 3 คาบ")
	assert.Contains(t, message, "❗ บันทึกไม่สำเร็จ: 1 คาบ")
	assert.Contains(t, message, "👤 ยืนยันโดย: admin")
}

func TestRejectionMessagesAreDistinct(t *testing.T) {
	renderer := NewReportRenderer(nil)
	future := renderer.Rejection(appErrors.ErrReportFuture, "2025-12-01", 7)
	stale := renderer.Rejection(appErrors.ErrReportStale, "2025-11-01", 7)
	format := renderer.Rejection(appErrors.ErrReportFormat, "", 7)

	assert.Contains(t, future, "ล่วงหน้า")
	assert.Contains(t, stale, "7 วัน")
	assert.Contains(t, format, "[REPORT] YYYY-MM-DD")
	assert.NotEqual(t, future, stale)
}
