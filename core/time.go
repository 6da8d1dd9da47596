package core

import (
	"time"
)

// =============================================================================
// TIME POINT - Unambiguous absolute instant
// =============================================================================

// TimePoint wraps time.Time normalized to UTC. Every timestamp crossing a
// package boundary is a TimePoint, never a local wall-clock string, so
// date-window comparisons stay correct. "Now" is always passed in by the
// caller - domain code never reads the ambient clock.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func At(t time.Time) TimePoint {
	return TimePoint{Time: t.UTC()}
}

func Now() TimePoint {
	return TimePoint{Time: time.Now().UTC()}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format(time.RFC3339)
}

// SameCalendarMonth reports whether two instants fall in the same calendar
// month of the same year. Used for "new clients this month" style windows.
func (tp TimePoint) SameCalendarMonth(other TimePoint) bool {
	return tp.Year() == other.Year() && tp.Month() == other.Month()
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfMonth(tp TimePoint) TimePoint {
	return NewTimePoint(tp.Year(), tp.Month(), 1)
}

func EndOfMonth(tp TimePoint) TimePoint {
	t := time.Date(tp.Year(), tp.Month()+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	return TimePoint{Time: t}
}

func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}
