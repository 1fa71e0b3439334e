/*
Package payout implements the date rule every schedule in the engine uses.

RULE:
  The anchor date (investment or approval date) picks a day-of-month
  convention once:
    anchor day 1..15  -> MidMonth, payouts on the 15th
    anchor day 16..31 -> MonthEnd, payouts on the 30th, clamped to the
                         month's last day (Feb 28/29, the 30th of 31-day months)
  Payout n lands in the month (anchor month + n).

  Payout dates never drift: the 3rd payout of a MonthEnd schedule started
  in January is March 30 even though February was clamped to the 28th.

EXAMPLES:
  anchor 2024-01-10, n=1 -> 2024-02-15
  anchor 2024-01-31, n=1 -> 2024-02-29 (leap year)
  anchor 2024-01-31, n=2 -> 2024-03-30
  anchor 2024-12-20, n=2 -> 2025-02-28

SEE ALSO:
  - schedule/: investment obligations
  - deposit/: RD installments and maturity
*/
package payout

import (
	"github.com/warp/payout-engine/generic"
)

// Convention is the day-of-month payouts are targeted at.
type Convention int

const (
	MidMonth Convention = 15
	MonthEnd Convention = 30
)

// Day is the target day before clamping.
func (c Convention) Day() int { return int(c) }

func (c Convention) String() string {
	if c == MidMonth {
		return "mid-month"
	}
	return "month-end"
}

// ConventionFor derives the convention from the anchor's day of month.
func ConventionFor(anchor generic.TimePoint) Convention {
	if anchor.Day() <= 15 {
		return MidMonth
	}
	return MonthEnd
}

// PayoutDate returns the date of payout n for a schedule anchored at anchor.
// n counts months from the anchor month; n=0 is the anchor month itself.
func PayoutDate(anchor generic.TimePoint, n int, c Convention) generic.TimePoint {
	y, m := generic.ShiftMonth(anchor.Year(), anchor.Month(), n)
	day := c.Day()
	if last := generic.DaysInMonth(y, m); day > last {
		day = last
	}
	return generic.NewTimePoint(y, m, day)
}

// DueDate is PayoutDate with the convention taken from the anchor.
func DueDate(anchor generic.TimePoint, n int) generic.TimePoint {
	return PayoutDate(anchor, n, ConventionFor(anchor))
}
