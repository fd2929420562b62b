package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

var ict = time.FixedZone("ICT", 7*60*60)

func TestParseReportHeader(t *testing.T) {
	date, err := ParseReportHeader("\n\n[REPORT] 2025-11-28\nbody")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-28", date)

	for _, text := range []string{"", "📝 รายงาน\n[REPORT] 2025-11-28", "[REPORT] 28-11-2025", "[REPORT] 2025-13-40"} {
		_, err := ParseReportHeader(text)
		assert.ErrorIs(t, err, appErrors.ErrReportFormat, "input %q", text)
	}
}

func TestValidateReportDate(t *testing.T) {
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, ict)
	window := 7 * 24 * time.Hour

	assert.NoError(t, ValidateReportDate("2025-11-28", now, window, ict))
	assert.NoError(t, ValidateReportDate("2025-11-21", now, window, ict))

	err := ValidateReportDate("2025-11-29", now, window, ict)
	assert.ErrorIs(t, err, appErrors.ErrReportFuture)

	err = ValidateReportDate("2025-11-20", now, window, ict)
	assert.ErrorIs(t, err, appErrors.ErrReportStale)
	assert.NotErrorIs(t, err, appErrors.ErrReportFuture)
}

func TestValidateReportDateUsesLocalCalendarDay(t *testing.T) {
	// 2025-11-27 20:00 UTC is already 2025-11-28 in Bangkok.
	now := time.Date(2025, 11, 27, 20, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateReportDate("2025-11-28", now, 7*24*time.Hour, ict))
}

func TestParseReportReadsEditedReport(t *testing.T) {
	parsed := mustParseReport(t, editedReport)
	require.Len(t, parsed, 5)

	first := parsed[0]
	assert.Equal(t, "คณิตศาสตร์", first.Subject)
	assert.Equal(t, "ป.1", first.ClassID)
	assert.Equal(t, "ครูอำพร", first.AbsentTeacherName)
	require.NotNil(t, first.SubstituteTeacherName)
	assert.Equal(t, "ครูสุจิตร", *first.SubstituteTeacherName)
	assert.Equal(t, "Fri", first.Day)
	assert.Equal(t, 1, first.Period)

	periods := make([]int, 0, len(parsed))
	for _, p := range parsed {
		periods = append(periods, p.Period)
	}
	assert.Equal(t, []int{1, 1, 2, 3, 4}, periods)
}

func TestParseReportNoSubstituteAndStrayLines(t *testing.T) {
	text := `[REPORT] 2025-11-24
    - วิชาศิลปะ (ม.1): ครูดวงใจ (ลา) ➡️ ครูพิมล (สอนแทน)
วันจันทร์:
    - วิชาศิลปะ (ม.1): ครูดวงใจ (ลา) ➡️ ครูพิมล (สอนแทน)
  คาบที่ 3:
    - วิชาศิลปะ (ม.1): ครูดวงใจ (ลา) ➡️ ❌ ไม่พบครูสอนแทน
    - วิชาดนตรี (ม.2): ครูดวงใจ (ลา) → ครูพิมล
    บันทึก: ห้องเรียนย้าย
วันพุธ:
  คาบที่ 6:
    - วิชาพละ (ป.6): ครูบัวลอย (ลา) ➡ ครูอภิชญา (สอนแทน)
`
	parsed := mustParseReport(t, text)
	require.Len(t, parsed, 3)

	assert.Equal(t, "Mon", parsed[0].Day)
	assert.Equal(t, 3, parsed[0].Period)
	assert.Nil(t, parsed[0].SubstituteTeacherName)

	require.NotNil(t, parsed[1].SubstituteTeacherName)
	assert.Equal(t, "ครูพิมล", *parsed[1].SubstituteTeacherName)

	assert.Equal(t, "Wed", parsed[2].Day)
	assert.Equal(t, 6, parsed[2].Period)
	require.NotNil(t, parsed[2].SubstituteTeacherName)
	assert.Equal(t, "ครูอภิชญา", *parsed[2].SubstituteTeacherName)
}

func TestParseReportLongLines(t *testing.T) {
	note := strings.Repeat("ก", 40*1024) // 120KiB of UTF-8 on one line
	text := "[REPORT] 2025-11-28\n" + note + "\nวันศุกร์:\n  คาบที่ 1:\n    - วิชาคณิตศาสตร์ (ป.1): ครูอำพร (ลา) ➡️ ครูสุจิตร (สอนแทน)\n"

	date, err := ParseReportHeader(text)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-28", date)

	parsed := mustParseReport(t, text)
	require.Len(t, parsed, 1)
	assert.Equal(t, "ครูอำพร", parsed[0].AbsentTeacherName)

	tooLong := "[REPORT] 2025-11-28\n" + strings.Repeat("x", maxReportLine+1) + "\n"
	_, err = ParseReport(tooLong)
	assert.ErrorIs(t, err, appErrors.ErrReportFormat)

	_, err = ParseReportHeader(strings.Repeat("x", maxReportLine+1))
	assert.ErrorIs(t, err, appErrors.ErrReportFormat)
}

func mustParseReport(t *testing.T, text string) []models.ParsedAssignment {
	t.Helper()
	parsed, err := ParseReport(text)
	require.NoError(t, err)
	return parsed
}
