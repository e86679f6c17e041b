package availability

import (
	"fmt"
	"time"
)

// DayKeyLayout is the canonical format for calendar-day bucketing and wire
// exchange. Keys are always built from local calendar fields, never from a
// serialized timestamp, so a timezone offset cannot shift a date into the
// neighboring bucket.
const DayKeyLayout = "2006-01-02"

// DayKey returns the canonical YYYY-MM-DD key for a calendar date.
func DayKey(t time.Time) string {
	year, month, day := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// ParseDayKey parses a canonical day key into a local-time date.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// ExpandRange returns the day keys covered by [start, start+durationDays),
// in chronological order. A non-positive duration yields no keys.
func ExpandRange(start time.Time, durationDays int) []string {
	if durationDays <= 0 {
		return nil
	}
	keys := make([]string, 0, durationDays)
	for i := 0; i < durationDays; i++ {
		keys = append(keys, DayKey(start.AddDate(0, 0, i)))
	}
	return keys
}
