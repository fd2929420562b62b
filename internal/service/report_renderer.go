package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

const reportRule = "=============================="

// ReportRenderer formats the Thai chat messages exchanged with the admin.
type ReportRenderer struct {
	roster *models.Roster
}

// NewReportRenderer builds a renderer that resolves IDs through the roster.
func NewReportRenderer(roster *models.Roster) *ReportRenderer {
	return &ReportRenderer{roster: roster}
}

// DailyReport renders the proposed assignments of a date. The first line is the
// machine-readable "[REPORT] YYYY-MM-DD" header the admin sends back.
func (r *ReportRenderer) DailyReport(date string, assignments []models.PendingAssignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", reportHeaderPrefix, date)
	b.WriteString("📝 รายงานผลการจัดหาครูสอนแทน 📝\n")
	if day, err := time.Parse(dateLayout, date); err == nil {
		fmt.Fprintf(&b, "ประจำวันที่ %s\n", thaiLongDate(day))
	}
	b.WriteString(reportRule + "\n\n")

	if len(assignments) == 0 {
		b.WriteString("ไม่มีข้อมูลการลาในวันที่ระบุ\n")
		return b.String()
	}

	summary := models.SummarizeCoverage(assignments)
	b.WriteString("สรุปผล:\n")
	fmt.Fprintf(&b, "👩‍🏫 ครูที่ลา: %d ท่าน\n", summary.AbsentTeachers)
	fmt.Fprintf(&b, "📚 จำนวนคาบทั้งหมด: %d คาบ\n", summary.TotalPeriods)
	fmt.Fprintf(&b, "✅ หาครูสอนแทนได้: %s\n\n", summary.String())

	b.WriteString("ตารางสอนแทน:\n")
	byDay := groupByDayAndPeriod(assignments)
	for _, day := range orderedDays(byDay) {
		fmt.Fprintf(&b, "\nวัน%s:\n", thaiDayName(day))
		periods := byDay[day]
		keys := make([]int, 0, len(periods))
		for period := range periods {
			keys = append(keys, period)
		}
		sort.Ints(keys)
		for _, period := range keys {
			fmt.Fprintf(&b, "  คาบที่ %d:\n", period)
			for _, a := range periods[period] {
				fmt.Fprintf(&b, "    - วิชา%s (%s): %s (ลา) ➡️ %s\n",
					r.roster.SubjectName(a.SubjectID),
					a.ClassID,
					r.roster.DisplayName(a.AbsentTeacherID),
					r.substituteText(a.SubstituteTeacherID),
				)
			}
		}
	}
	b.WriteString(reportRule + "\n")
	return b.String()
}

// ChangeConfirmation summarises a reconciliation for the admin.
func (r *ReportRenderer) ChangeConfirmation(date string, changes *models.ChangeSet) string {
	var b strings.Builder
	b.WriteString("✅ อัปเดตการสอนแทนสำเร็จ\n\n")
	fmt.Fprintf(&b, "วันที่: %s\n\n", date)
	r.writeChanges(&b, changes)
	return strings.TrimRight(b.String(), "\n")
}

// FinalizationConfirmation reports how many rows reached the ledger.
func (r *ReportRenderer) FinalizationConfirmation(date string, result *models.FinalizeResult, changes *models.ChangeSet) string {
	var b strings.Builder
	b.WriteString("✅ ยืนยันการสอนแทนเรียบร้อย\n\n")
	fmt.Fprintf(&b, "วันที่: %s\n", date)
	if result != nil {
		fmt.Fprintf(&b, "📌 บันทึกลงทะเบียนแล้ว: %d คาบ\n", result.FinalizedCount)
		if result.FailedCount > 0 {
			fmt.Fprintf(&b, "❗ บันทึกไม่สำเร็จ: %d คาบ (ยังคงรอยืนยัน)\n", result.FailedCount)
		}
		if result.VerifiedBy != "" {
			fmt.Fprintf(&b, "👤 ยืนยันโดย: %s\n", result.VerifiedBy)
		}
	}
	if changes != nil {
		b.WriteString("\n")
		r.writeChanges(&b, changes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Rejection explains why a report was refused.
func (r *ReportRenderer) Rejection(err error, date string, maxAgeDays int) string {
	switch {
	case errors.Is(err, appErrors.ErrReportFuture):
		return fmt.Sprintf("❌ ไม่สามารถยืนยันรายงานล่วงหน้าได้\nวันที่ %s ยังมาไม่ถึง", date)
	case errors.Is(err, appErrors.ErrReportStale):
		return fmt.Sprintf("❌ รายงานวันที่ %s เก่าเกินไป\nยืนยันได้เฉพาะรายงานย้อนหลังไม่เกิน %d วัน", date, maxAgeDays)
	case errors.Is(err, appErrors.ErrReportFormat):
		return "❌ รูปแบบรายงานไม่ถูกต้อง\nบรรทัดแรกต้องเป็น " + reportHeaderPrefix + " YYYY-MM-DD"
	case errors.Is(err, appErrors.ErrNotFound):
		return fmt.Sprintf("❌ ไม่พบรายการรอยืนยันของวันที่ %s", date)
	case errors.Is(err, appErrors.ErrValidation), errors.Is(err, appErrors.ErrConflict):
		return "❌ " + appErrors.FromError(err).Message
	default:
		return "❌ เกิดข้อผิดพลาด กรุณาลองใหม่อีกครั้ง"
	}
}

// Expiry announces a sweep.
func (r *ReportRenderer) Expiry(count int64) string {
	return fmt.Sprintf("⌛ รายการสอนแทนที่ไม่ได้ยืนยันหมดอายุแล้ว %d คาบ", count)
}

func (r *ReportRenderer) writeChanges(b *strings.Builder, changes *models.ChangeSet) {
	if len(changes.Updated) > 0 {
		fmt.Fprintf(b, "📝 การเปลี่ยนแปลง (%d คาบ):\n", len(changes.Updated))
		for _, change := range changes.Updated {
			fmt.Fprintf(b, "- วิชา%s (%s) คาบ %d:\n", change.Subject, change.ClassID, change.Key.Period)
			fmt.Fprintf(b, "  เปลี่ยนจาก %s เป็น %s ✅\n", r.substituteName(change.OldSubstitute), r.substituteName(change.NewSubstitute))
		}
		b.WriteString("\n")
	}

	if len(changes.Unchanged) > 0 {
		fmt.Fprintf(b, "✓ ไม่เปลี่ยนแปลง (%d คาบ)\n\n", len(changes.Unchanged))
	}

	if len(changes.AISuggestions) > 0 {
		b.WriteString("🤖 AI แนะนำการแก้ไขชื่อ (กรุณาตรวจสอบ):\n")
		for _, s := range changes.AISuggestions {
			fmt.Fprintf(b, "- \"%s\" → คาดว่าคือ \"%s\" (ความมั่นใจ: %.0f%%)\n", s.SuggestedName, r.roster.DisplayName(s.SuggestedID), s.Confidence*100)
		}
		b.WriteString("\n")
	}

	if len(changes.MatchErrors) > 0 || len(changes.NotFound) > 0 {
		b.WriteString("⚠️ คำเตือน:\n")
		for _, e := range changes.MatchErrors {
			fmt.Fprintf(b, "- ไม่พบครู \"%s\" ในระบบ (%s)\n", e.TeacherName, e.Context)
		}
		if len(changes.NotFound) > 0 {
			b.WriteString("- ไม่พบข้อมูลในระบบที่ตรงกับ:\n")
			for _, nf := range changes.NotFound {
				fmt.Fprintf(b, "  • %s (%s)\n", nf.Parsed.AbsentTeacherName, nf.Parsed.Context())
			}
		}
	}
}

func (r *ReportRenderer) substituteText(id *string) string {
	if id == nil || *id == "" || *id == models.NoSubstituteLabel {
		return "❌ ไม่พบครูสอนแทน"
	}
	return r.roster.DisplayName(*id) + " (สอนแทน)"
}

func (r *ReportRenderer) substituteName(id *string) string {
	if id == nil || *id == "" || *id == models.NoSubstituteLabel {
		return "ไม่มีครูสอนแทน"
	}
	return r.roster.DisplayName(*id)
}

func groupByDayAndPeriod(assignments []models.PendingAssignment) map[string]map[int][]models.PendingAssignment {
	grouped := make(map[string]map[int][]models.PendingAssignment)
	for _, a := range assignments {
		if grouped[a.Day] == nil {
			grouped[a.Day] = make(map[int][]models.PendingAssignment)
		}
		grouped[a.Day][a.Period] = append(grouped[a.Day][a.Period], a)
	}
	return grouped
}

func orderedDays(byDay map[string]map[int][]models.PendingAssignment) []string {
	days := make([]string, 0, len(byDay))
	for _, day := range models.Weekdays {
		if _, ok := byDay[day]; ok {
			days = append(days, day)
		}
	}
	extra := make([]string, 0)
	for day := range byDay {
		if _, known := thaiDayCodes[thaiDayNames[day]]; !known {
			extra = append(extra, day)
		}
	}
	sort.Strings(extra)
	return append(days, extra...)
}

func thaiDayName(day string) string {
	if name, ok := thaiDayNames[day]; ok {
		return name
	}
	return day
}
