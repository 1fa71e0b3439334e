package payout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func TestConventionFor_SplitsOnFifteenth(t *testing.T) {
	assert.Equal(t, payout.MidMonth, payout.ConventionFor(date(2024, 1, 1)))
	assert.Equal(t, payout.MidMonth, payout.ConventionFor(date(2024, 1, 15)))
	assert.Equal(t, payout.MonthEnd, payout.ConventionFor(date(2024, 1, 16)))
	assert.Equal(t, payout.MonthEnd, payout.ConventionFor(date(2024, 1, 31)))
}

func TestPayoutDate_Table(t *testing.T) {
	cases := []struct {
		name   string
		anchor generic.TimePoint
		n      int
		want   generic.TimePoint
	}{
		{"mid-month next month", date(2024, 1, 10), 1, date(2024, 2, 15)},
		{"month-end into leap february", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"month-end into common february", date(2023, 1, 31), 1, date(2023, 2, 28)},
		{"no drift after clamped month", date(2024, 1, 31), 2, date(2024, 3, 30)},
		{"31-day month still lands on 30th", date(2024, 4, 20), 1, date(2024, 5, 30)},
		{"crosses year boundary", date(2024, 12, 20), 2, date(2025, 2, 28)},
		{"offset zero is anchor month", date(2024, 6, 3), 0, date(2024, 6, 15)},
		{"long horizon", date(2024, 1, 15), 25, date(2026, 2, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := payout.DueDate(tc.anchor, tc.n)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestPayoutDate_AlwaysInTargetMonth(t *testing.T) {
	// GIVEN: every anchor day of a year
	// WHEN: computing the next 30 payout dates
	// THEN: each lands on day 15 or on min(30, last day) of anchor month + n
	for anchor := date(2023, 1, 1); anchor.Year() == 2023; anchor = anchor.AddDays(1) {
		conv := payout.ConventionFor(anchor)
		for n := 0; n < 30; n++ {
			got := payout.PayoutDate(anchor, n, conv)
			y, m := generic.ShiftMonth(anchor.Year(), anchor.Month(), n)
			assert.Equal(t, y, got.Year())
			assert.Equal(t, m, got.Month())

			wantDay := 15
			if conv == payout.MonthEnd {
				wantDay = min(30, generic.DaysInMonth(y, m))
			}
			assert.Equal(t, wantDay, got.Day())
		}
	}
}
