package schedule

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// DeriveReturn fills in whichever of expected return and return percentage
// is missing. The percentage is annual: expected = principal*pct/100*months/12.
// When both are given they are returned unchanged.
func DeriveReturn(principal decimal.Decimal, months int, expected, pct decimal.NullDecimal) (decimal.Decimal, decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, decimal.Zero, generic.Invalid("principal", "must be positive")
	}
	if months <= 0 {
		return decimal.Zero, decimal.Zero, generic.Invalid("duration_months", "is required and must be positive")
	}

	years := decimal.NewFromInt(int64(months)).Div(generic.Twelve)
	switch {
	case pct.Valid && expected.Valid:
		return expected.Decimal, pct.Decimal, nil
	case pct.Valid:
		exp := generic.Round2(generic.PercentOf(principal, pct.Decimal).Mul(years))
		return exp, pct.Decimal, nil
	case expected.Valid:
		p := generic.Round2(expected.Decimal.Div(principal).Mul(generic.Hundred).Div(years))
		return expected.Decimal, p, nil
	}
	return decimal.Zero, decimal.Zero, generic.Invalid("return_percentage", "expected_return or return_percentage is required")
}

// CompanyInterest is the schedule of an investment the company books
// itself: one interest-only payment per month for months 1..duration, dated
// exactly m calendar months after the investment date.
func CompanyInterest(inv Investment) ([]Obligation, error) {
	switch {
	case inv.Terms.DurationMonths <= 0:
		return nil, generic.Invalid("duration_months", "is required and must be positive")
	case !inv.Terms.ReturnPercent.Valid:
		return nil, generic.Invalid("return_percentage", "is required")
	case !inv.Principal.IsPositive():
		return nil, generic.Invalid("principal", "must be positive")
	}

	interest := generic.Round2(generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal))
	out := make([]Obligation, 0, inv.Terms.DurationMonths)
	for m := 1; m <= inv.Terms.DurationMonths; m++ {
		out = append(out, Obligation{
			CustomerID:      inv.CustomerID,
			PayoutMonth:     m,
			DueDate:         inv.InvestmentDate.AddMonths(m),
			StartDate:       inv.InvestmentDate,
			Kind:            KindMonthly,
			Amount:          interest,
			InterestAmount:  interest,
			PrincipalAmount: decimal.Zero,
		})
	}
	return out, nil
}
