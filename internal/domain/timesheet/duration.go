package timesheet

import "math"

// ComputeDurationMinutes resolves an entry's duration. An explicit value
// wins and must be positive; otherwise both times are required and end
// must be after start on the same day.
func ComputeDurationMinutes(start, end *ClockTime, explicit *int) (int, error) {
	if explicit != nil {
		if *explicit <= 0 {
			return 0, ErrInvalidDuration
		}
		return *explicit, nil
	}
	if start == nil || end == nil {
		return 0, ErrTimesRequired
	}
	if !start.Valid() || !end.Valid() {
		return 0, ErrInvalidClock
	}
	if *end <= *start {
		return 0, ErrInvalidTimeRange
	}
	return int(*end - *start), nil
}

// HoursFromMinutes rounds to two decimal places.
func HoursFromMinutes(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}
