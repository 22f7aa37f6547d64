package timesheet

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ClockTime is a time of day at minute precision, stored as minutes since
// midnight.
type ClockTime int

const minutesPerDay = 24 * 60

func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock accepts "15:04" or "15:04:05"; seconds are dropped.
func ParseClock(value string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return Clock(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid time of day %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func clockFromPG(t pgtype.Time) *ClockTime {
	if !t.Valid {
		return nil
	}
	c := ClockTime(t.Microseconds / int64(time.Minute/time.Microsecond))
	return &c
}

func clockToPG(c *ClockTime) pgtype.Time {
	if c == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(*c) * int64(time.Minute/time.Microsecond), Valid: true}
}
