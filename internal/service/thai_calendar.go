package service

import (
	"fmt"
	"time"
)

var thaiDayNames = map[string]string{
	"Mon": "จันทร์",
	"Tue": "อังคาร",
	"Wed": "พุธ",
	"Thu": "พฤหัสบดี",
	"Fri": "ศุกร์",
	"Sat": "เสาร์",
	"Sun": "อาทิตย์",
}

var thaiDayCodes = map[string]string{
	"จันทร์":   "Mon",
	"อังคาร":   "Tue",
	"พุธ":      "Wed",
	"พฤหัสบดี": "Thu",
	"ศุกร์":    "Fri",
}

var thaiMonths = []string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

const dateLayout = "2006-01-02"

// weekdayCode returns the three letter day code ("Mon".."Sun") of a date.
func weekdayCode(t time.Time) string {
	return t.Weekday().String()[:3]
}

// thaiLongDate renders a date as "28 พฤศจิกายน 2568" in the Buddhist era.
func thaiLongDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), thaiMonths[t.Month()-1], t.Year()+543)
}

// startOfDay truncates t to midnight in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
