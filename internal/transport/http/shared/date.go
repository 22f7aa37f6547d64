package shared

import (
	"net/http"
	"strings"
	"time"

	"timetrack/internal/domain/timesheet"
	"timetrack/internal/platform/apperr"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.DateOnly, value)
}

// ParseWeekRange reads the optional from/to query parameters.
func ParseWeekRange(r *http.Request) (timesheet.WeekRange, error) {
	var weeks timesheet.WeekRange
	for _, p := range []struct {
		name   string
		target **time.Time
	}{{"from", &weeks.From}, {"to", &weeks.To}} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		parsed, err := ParseDate(raw)
		if err != nil {
			return timesheet.WeekRange{}, apperr.Validation("invalid_date", "dates must be YYYY-MM-DD").WithField(p.name, "must be a valid date in YYYY-MM-DD format")
		}
		*p.target = &parsed
	}
	return weeks, nil
}
