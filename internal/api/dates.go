package api

import (
	"regexp"
	"strings"
	"time"
)

var (
	reISOWithTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
	reDotted      = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	reBareDate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// NormalizeDueDate converts user-entered due dates to what the backend's
// OffsetDateTime parser accepts:
//   - already time-qualified ISO-8601 is passed through unchanged;
//   - dd.mm.yyyy is reinterpreted as yyyy-mm-dd;
//   - a bare yyyy-mm-dd becomes end of day (23:59:00) with the explicit local
//     numeric UTC offset, so the calendar day never shifts in transit.
//
// Anything else reports ok=false, meaning "no value". Inputs arrive from both
// manual text entry and a date picker, hence the lenient shapes.
func NormalizeDueDate(input string) (string, bool) {
	return normalizeDueDateIn(input, time.Local)
}

func normalizeDueDateIn(input string, loc *time.Location) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	if reISOWithTime.MatchString(s) {
		return s, true
	}
	if m := reDotted.FindStringSubmatch(s); m != nil {
		s = m[3] + "-" + m[2] + "-" + m[1]
	}
	if !reBareDate.MatchString(s) {
		return "", false
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return "", false
	}
	eod := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, loc)
	return eod.Format("2006-01-02T15:04:05-07:00"), true
}
