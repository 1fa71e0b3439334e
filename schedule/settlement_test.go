package schedule_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/schedule"
)

func TestSettle_InfrastructureUsesDiscountedPrincipal(t *testing.T) {
	// GIVEN: 100,000 infrastructure at a 10% discount with three 10,000 rows paid
	inv := investment(schedule.SegmentInfrastructure, schedule.ModePeriodic, "100000", 10, "0", generic.NewTimePoint(2024, 1, 1))
	inv.Terms.Discount = money("10")
	obs, err := schedule.Generate(inv, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		obs[i].Paid = true
	}

	// WHEN: settling
	s := schedule.Settle(inv, obs)

	// THEN: 90,000 at stake, 30,000 paid, 60,000 still payable
	assertMoney(t, "90000", s.Principal)
	assertMoney(t, "30000", s.TotalPaid)
	assertMoney(t, "60000", s.Amount)
	assert.Equal(t, schedule.PayableToCustomer, s.Type)
}

func TestSettle_OtherSegmentsIgnoreDiscount(t *testing.T) {
	inv := investment(schedule.SegmentDirect, schedule.ModePeriodic, "1000", 2, "10", generic.NewTimePoint(2024, 1, 1))
	inv.Terms.Discount = money("10")
	obs, err := schedule.Generate(inv, 0)
	require.NoError(t, err)
	for i := range obs {
		obs[i].Paid = true
	}

	s := schedule.Settle(inv, obs)

	assertMoney(t, "1000", s.Principal)
	assertMoney(t, "1200", s.TotalPaid)
	assertMoney(t, "-200", s.Amount)
	assert.Equal(t, schedule.Overpaid, s.Type)
}

func TestSettle_NothingOwed(t *testing.T) {
	inv := investment(schedule.SegmentPreIPO, schedule.ModeBuyback, "500", 12, "0", generic.NewTimePoint(2024, 1, 1))
	obs := []schedule.Obligation{{Amount: money("500"), Paid: true}}

	assert.Equal(t, schedule.Settled, schedule.Settle(inv, obs).Type)
}

func TestDeriveReturn(t *testing.T) {
	exp, p, err := schedule.DeriveReturn(money("100000"), 12, decimalNull(), pct("12"))
	require.NoError(t, err)
	assertMoney(t, "12000", exp)
	assertMoney(t, "12", p)

	exp, p, err = schedule.DeriveReturn(money("100000"), 6, pct("6000"), decimalNull())
	require.NoError(t, err)
	assertMoney(t, "6000", exp)
	assertMoney(t, "12", p)

	// both given: kept as supplied even when they disagree
	exp, p, err = schedule.DeriveReturn(money("100000"), 12, pct("5000"), pct("12"))
	require.NoError(t, err)
	assertMoney(t, "5000", exp)
	assertMoney(t, "12", p)

	_, _, err = schedule.DeriveReturn(money("100000"), 6, decimalNull(), decimalNull())
	assert.True(t, generic.IsClientError(err))
}

func TestCompanyInterest_CalendarMonthsFromInvestmentDate(t *testing.T) {
	inv := investment(schedule.SegmentInvestment, schedule.ModePeriodic, "100000", 3, "1", generic.NewTimePoint(2024, 1, 31))

	obs, err := schedule.CompanyInterest(inv)
	require.NoError(t, err)

	require.Len(t, obs, 3)
	assert.Equal(t, "2024-02-29", obs[0].DueDate.String())
	assert.Equal(t, "2024-03-31", obs[1].DueDate.String())
	assert.Equal(t, "2024-04-30", obs[2].DueDate.String())
	for _, o := range obs {
		assertMoney(t, "1000", o.Amount)
		assert.False(t, o.IsPrincipal)
	}
}

func TestCompanyInterest_RequiresDuration(t *testing.T) {
	inv := investment(schedule.SegmentInvestment, schedule.ModePeriodic, "100000", 0, "1", generic.NewTimePoint(2024, 1, 31))

	_, err := schedule.CompanyInterest(inv)
	assert.True(t, generic.IsClientError(err))
}

func decimalNull() decimal.NullDecimal { return decimal.NullDecimal{} }
