package availability

import (
	"fmt"
	"strings"
	"time"

	"clothingrental/internal/models"
)

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDate renders a stored date as "Jan 2, 2006". Unparseable input is
// returned unchanged.
func FormatDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(models.DisplayDateLayout)
}

// Today returns now as a YYYY-MM-DD calendar date in UTC.
func Today(now time.Time) string {
	return now.UTC().Format(models.DateLayout)
}

// dateKey is ParseDate without the error; malformed input maps to the zero time.
func dateKey(s string) time.Time {
	t, _ := ParseDate(s)
	return t
}
