package timesheet

import "time"

// DateOnly drops the time of day, keeping the calendar date as written.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeToWeekStart returns the Monday of the week containing t.
// Sunday belongs to the week that started six days earlier.
func NormalizeToWeekStart(t time.Time) time.Time {
	day := DateOnly(t)
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

func WeekEnd(weekStart time.Time) time.Time {
	return DateOnly(weekStart).AddDate(0, 0, 6)
}

// InWeek reports whether date lies in [weekStart, weekStart+6].
func InWeek(date, weekStart time.Time) bool {
	d := DateOnly(date)
	start := DateOnly(weekStart)
	return !d.Before(start) && !d.After(WeekEnd(start))
}
