package service

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

const (
	reportHeaderPrefix = "[REPORT]"
	substituteMarker   = "(สอนแทน)"

	maxReportLine = 1 << 20
)

var (
	reportHeaderPattern = regexp.MustCompile(`^\[REPORT\]\s+(\d{4}-\d{2}-\d{2})\s*$`)
	dayHeaderPattern    = regexp.MustCompile(`วัน(จันทร์|อังคาร|พุธ|พฤหัสบดี|ศุกร์):`)
	periodHeaderPattern = regexp.MustCompile(`คาบที่\s*(\d+):`)
	assignmentPattern   = regexp.MustCompile(`วิชา(.+?)\s*\((.+?)\):\s*(.+?)\s*\(ลา\)\s*(?:➡\x{FE0F}?|→|->)\s*(.+?)\s*$`)
	noSubstitutePattern = regexp.MustCompile(`❌\s*ไม่พบครูสอนแทน`)
)

// ParseReportHeader extracts the YYYY-MM-DD date from the first non-empty line.
func ParseReportHeader(text string) (string, error) {
	scanner := newReportScanner(text)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		match := reportHeaderPattern.FindStringSubmatch(line)
		if match == nil {
			return "", appErrors.Clone(appErrors.ErrReportFormat, fmt.Sprintf("first line must be %s YYYY-MM-DD, got %q", reportHeaderPrefix, line))
		}
		if _, err := time.Parse(dateLayout, match[1]); err != nil {
			return "", appErrors.Clone(appErrors.ErrReportFormat, fmt.Sprintf("invalid report date %q", match[1]))
		}
		return match[1], nil
	}
	if err := scanner.Err(); err != nil {
		return "", scanError(err)
	}
	return "", appErrors.Clone(appErrors.ErrReportFormat, "report is empty")
}

func newReportScanner(text string) *bufio.Scanner {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), maxReportLine)
	return scanner
}

func scanError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrReportFormat.Code, appErrors.ErrReportFormat.Status, fmt.Sprintf("report line exceeds %d bytes", maxReportLine))
}

// ValidateReportDate rejects reports dated after today and reports older than maxAge.
func ValidateReportDate(date string, now time.Time, maxAge time.Duration, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	reportDay, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return appErrors.Clone(appErrors.ErrReportFormat, fmt.Sprintf("invalid report date %q", date))
	}
	today := startOfDay(now, loc)
	if reportDay.After(today) {
		return appErrors.Clone(appErrors.ErrReportFuture, fmt.Sprintf("report date %s is after today %s", date, today.Format(dateLayout)))
	}
	days := int(maxAge.Hours() / 24)
	if days > 0 && reportDay.Before(today.AddDate(0, 0, -days)) {
		return appErrors.Clone(appErrors.ErrReportStale, fmt.Sprintf("report date %s is older than %d days", date, days))
	}
	return nil
}

// ParseReport reads assignment lines from a report, tracking the current day and
// period headers. Lines outside a day and period context are ignored.
func ParseReport(text string) ([]models.ParsedAssignment, error) {
	parsed := make([]models.ParsedAssignment, 0)
	currentDay := ""
	currentPeriod := 0

	scanner := newReportScanner(text)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if match := dayHeaderPattern.FindStringSubmatch(line); match != nil {
			currentDay = thaiDayCodes[match[1]]
			currentPeriod = 0
			continue
		}
		if match := periodHeaderPattern.FindStringSubmatch(line); match != nil {
			period, err := strconv.Atoi(match[1])
			if err == nil {
				currentPeriod = period
			}
			continue
		}
		if currentDay == "" || currentPeriod == 0 {
			continue
		}
		match := assignmentPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		parsed = append(parsed, models.ParsedAssignment{
			Subject:               strings.TrimSpace(match[1]),
			ClassID:               strings.TrimSpace(match[2]),
			AbsentTeacherName:     strings.TrimSpace(match[3]),
			SubstituteTeacherName: parseSubstituteName(match[4]),
			Day:                   currentDay,
			Period:                currentPeriod,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, scanError(err)
	}
	return parsed, nil
}

func parseSubstituteName(raw string) *string {
	if noSubstitutePattern.MatchString(raw) {
		return nil
	}
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), substituteMarker))
	if name == "" {
		return nil
	}
	return &name
}
