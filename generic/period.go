package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Half-open evaluation window
// =============================================================================

// Period is the window [Start, End). Monthly bonus evaluation and the
// monthly tick run over calendar-month periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that End is after Start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if !end.After(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the calendar month [1st, 1st of next month).
func MonthPeriod(year int, month time.Month) Period {
	start := StartOfMonth(year, month)
	ny, nm := ShiftMonth(year, month, 1)
	return Period{Start: start, End: StartOfMonth(ny, nm)}
}

// MonthOf returns the calendar-month period containing t.
func MonthOf(t TimePoint) Period { return MonthPeriod(t.Year(), t.Month()) }

// ParseMonth reads a YYYY-MM key into its calendar-month period.
func ParseMonth(key string) (Period, error) {
	t, err := time.Parse(MonthLayout, key)
	if err != nil {
		return Period{}, Invalid("month", fmt.Sprintf("%q is not YYYY-MM", key))
	}
	return MonthPeriod(t.Year(), t.Month()), nil
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.Before(p.End)
}

// Overlaps returns true if the two half-open windows share any instant.
func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && o.Start.Before(p.End)
}

// Key is the YYYY-MM of the period start. Grants are unique per (agent, plan, Key).
func (p Period) Key() string { return p.Start.MonthKey() }

// Previous returns the calendar month before the one p starts in.
func (p Period) Previous() Period {
	y, m := ShiftMonth(p.Start.Year(), p.Start.Month(), -1)
	return MonthPeriod(y, m)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}
