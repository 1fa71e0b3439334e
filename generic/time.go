package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date abstraction
// =============================================================================

// TimePoint is a calendar date (or a finer instant) in UTC. Payout dates,
// investment dates and period boundaries are all day-granular.
type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityInstant
)

const DateLayout = "2006-01-02"
const MonthLayout = "2006-01"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) TimePoint {
	u := t.UTC()
	return NewTimePoint(u.Year(), u.Month(), u.Day())
}

// InstantOf keeps the full timestamp; comparisons use the whole instant.
func InstantOf(t time.Time) TimePoint {
	return TimePoint{Time: t.UTC(), Granularity: GranularityInstant}
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, Invalid("date", fmt.Sprintf("%q is not YYYY-MM-DD", s))
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	if tp.Granularity == GranularityDay {
		return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
	}
	return tp.Time.UTC()
}

// Date drops any time-of-day component.
func (tp TimePoint) Date() TimePoint { return DateOf(tp.Time) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

// AddMonths moves n calendar months, clamping the day to the target month's
// last day (Jan 31 + 1 month = Feb 28/29).
func (tp TimePoint) AddMonths(n int) TimePoint {
	y, m := ShiftMonth(tp.Year(), tp.Month(), n)
	day := tp.Day()
	if last := DaysInMonth(y, m); day > last {
		day = last
	}
	t := time.Date(y, m, day, tp.Time.Hour(), tp.Time.Minute(), tp.Time.Second(), tp.Time.Nanosecond(), time.UTC)
	return TimePoint{Time: t, Granularity: tp.Granularity}
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// MonthKey returns the YYYY-MM key of the month containing tp.
func (tp TimePoint) MonthKey() string { return tp.Time.Format(MonthLayout) }

func (tp TimePoint) String() string {
	if tp.Granularity == GranularityDay {
		return tp.Time.Format(DateLayout)
	}
	return tp.Time.Format(time.RFC3339)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// ShiftMonth adds n months to (year, month) without touching days.
func ShiftMonth(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month-1) + n
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, DaysInMonth(year, month))
}
