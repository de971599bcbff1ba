package utils

import (
	"time"
)

// Clock abstracts wall-clock access so date-boundary logic (streak updates,
// weekly buckets, metric lookback windows) can be driven deterministically in
// tests. All calendar math in this service happens in UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// NewSystemClock returns the production wall clock.
func NewSystemClock() Clock {
	return systemClock{}
}

// FixedClock always reports the same instant.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Instant
}

// StartOfDay strips the time of day, returning UTC midnight of t's date.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the most recent Sunday at or before t, UTC midnight.
// Weekly study buckets are keyed by this date.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// DaysBetween returns the whole calendar days from 'from' to 'to'. The result
// is negative when 'to' precedes 'from'; callers decide what skew means.
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// SameDay reports whether both instants fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}
