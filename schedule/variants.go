package schedule

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// VARIANT REGISTRY - one generator per (segment, mode)
// =============================================================================

// variant produces the obligations of one schedule shape. Inputs are
// already validated; principal and rate are non-negative and duration > 0.
type variant func(inv Investment, conv payout.Convention) ([]Obligation, error)

type variantKey struct {
	segment Segment
	mode    PaymentMode
}

var variants = map[variantKey]variant{
	{SegmentPreIPO, ModePeriodic}:         monthlyInterestOnly,
	{SegmentRealEstate, ModePeriodic}:     monthlyInterestOnly,
	{SegmentInvestment, ModePeriodic}:     monthlyInterestOnly,
	{SegmentDirect, ModePeriodic}:         directMonthly,
	{SegmentInfrastructure, ModePeriodic}: infrastructureMonthly,
	{SegmentTravel, ModePeriodic}:         travelSixMonthly,

	{SegmentPreIPO, ModeBuyback}:         flatBuyback,
	{SegmentRealEstate, ModeBuyback}:     flatBuyback,
	{SegmentInvestment, ModeBuyback}:     flatBuyback,
	{SegmentDirect, ModeBuyback}:         flatBuyback,
	{SegmentTravel, ModeBuyback}:         flatBuyback,
	{SegmentInfrastructure, ModeBuyback}: principalOnlyBuyback,
}

// fallback covers segments with no registered variant.
var fallback = map[PaymentMode]variant{
	ModePeriodic: annualizedMonthly,
	ModeBuyback:  annualizedBuyback,
}

func variantFor(seg Segment, mode PaymentMode) variant {
	if v, ok := variants[variantKey{seg, mode}]; ok {
		return v
	}
	return fallback[mode]
}

// =============================================================================
// BUYBACK VARIANTS - single lump sum at maturity
// =============================================================================

// flatBuyback pays principal + principal*rate/100 once, at month = duration.
func flatBuyback(inv Investment, conv payout.Convention) ([]Obligation, error) {
	total := generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal)
	return []Obligation{lumpSum(inv, conv, generic.Round2(total))}, nil
}

// annualizedBuyback pro-rates an annual rate over the duration.
func annualizedBuyback(inv Investment, conv payout.Convention) ([]Obligation, error) {
	months := decimal.NewFromInt(int64(inv.Terms.DurationMonths))
	total := generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal).Mul(months).Div(generic.Twelve)
	return []Obligation{lumpSum(inv, conv, generic.Round2(total))}, nil
}

// principalOnlyBuyback returns the principal with no interest; the
// infrastructure return is the purchase discount.
func principalOnlyBuyback(inv Investment, conv payout.Convention) ([]Obligation, error) {
	return []Obligation{lumpSum(inv, conv, decimal.Zero)}, nil
}

func lumpSum(inv Investment, conv payout.Convention, interest decimal.Decimal) Obligation {
	principal := generic.Round2(inv.Principal)
	month := inv.Terms.DurationMonths
	return Obligation{
		CustomerID:      inv.CustomerID,
		PayoutMonth:     month,
		DueDate:         payout.PayoutDate(inv.InvestmentDate, month, conv),
		StartDate:       inv.InvestmentDate,
		Kind:            KindBuyback,
		Amount:          principal.Add(interest),
		InterestAmount:  interest,
		PrincipalAmount: principal,
		IsPrincipal:     true,
	}
}

// =============================================================================
// PERIODIC VARIANTS
// =============================================================================

// monthlyInterestOnly pays principal*rate/100 every month. Rate is monthly.
// No obligation carries the principal.
func monthlyInterestOnly(inv Investment, conv payout.Convention) ([]Obligation, error) {
	interest := generic.Round2(generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal))
	return monthlySeries(inv, conv, interest, false), nil
}

// directMonthly is interest-only for 11-month plans; otherwise the last
// month bundles the principal.
func directMonthly(inv Investment, conv payout.Convention) ([]Obligation, error) {
	interest := generic.Round2(generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal))
	return monthlySeries(inv, conv, interest, inv.Terms.DurationMonths != 11), nil
}

// annualizedMonthly pays rate/12 per month and bundles the principal last.
func annualizedMonthly(inv Investment, conv payout.Convention) ([]Obligation, error) {
	interest := generic.Round2(generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal).Div(generic.Twelve))
	return monthlySeries(inv, conv, interest, true), nil
}

func monthlySeries(inv Investment, conv payout.Convention, interest decimal.Decimal, bundlePrincipal bool) []Obligation {
	n := inv.Terms.DurationMonths
	principal := generic.Round2(inv.Principal)
	out := make([]Obligation, 0, n)
	for m := 1; m <= n; m++ {
		o := Obligation{
			CustomerID:      inv.CustomerID,
			PayoutMonth:     m,
			DueDate:         payout.PayoutDate(inv.InvestmentDate, m, conv),
			StartDate:       inv.InvestmentDate,
			Kind:            KindMonthly,
			Amount:          interest,
			InterestAmount:  interest,
			PrincipalAmount: decimal.Zero,
		}
		if bundlePrincipal && m == n {
			o.Amount = interest.Add(principal)
			o.PrincipalAmount = principal
			o.IsPrincipal = true
		}
		out = append(out, o)
	}
	return out
}

// infrastructureMonthly returns the principal in equal monthly shares. The
// last share absorbs the rounding residual so the amounts sum to the
// principal exactly. InterestAmount repeats the share on every row and the
// last row reports the full principal as PrincipalAmount.
func infrastructureMonthly(inv Investment, conv payout.Convention) ([]Obligation, error) {
	n := inv.Terms.DurationMonths
	principal := generic.Round2(inv.Principal)
	// Floored share, so last >= share >= 0 for any positive principal.
	share := principal.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	last := principal.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))

	out := make([]Obligation, 0, n)
	for m := 1; m <= n; m++ {
		o := Obligation{
			CustomerID:      inv.CustomerID,
			PayoutMonth:     m,
			DueDate:         payout.PayoutDate(inv.InvestmentDate, m, conv),
			StartDate:       inv.InvestmentDate,
			Kind:            KindMonthly,
			Amount:          share,
			InterestAmount:  share,
			PrincipalAmount: decimal.Zero,
		}
		if m == n {
			o.Amount = last
			o.PrincipalAmount = principal
			o.IsPrincipal = true
		}
		out = append(out, o)
	}
	return out, nil
}

// travelSixMonthly pays half the stated rate every 6 months,
// ceil(duration/6) times, and bundles the principal in the last payment.
func travelSixMonthly(inv Investment, conv payout.Convention) ([]Obligation, error) {
	count := (inv.Terms.DurationMonths + 5) / 6
	principal := generic.Round2(inv.Principal)
	interest := generic.Round2(generic.PercentOf(inv.Principal, inv.Terms.ReturnPercent.Decimal).Div(decimal.NewFromInt(2)))

	out := make([]Obligation, 0, count)
	for i := 1; i <= count; i++ {
		month := 6 * i
		o := Obligation{
			CustomerID:      inv.CustomerID,
			PayoutMonth:     month,
			DueDate:         payout.PayoutDate(inv.InvestmentDate, month, conv),
			StartDate:       inv.InvestmentDate,
			Kind:            KindSixMonth,
			Amount:          interest,
			InterestAmount:  interest,
			PrincipalAmount: decimal.Zero,
		}
		if i == count {
			o.Amount = interest.Add(principal)
			o.PrincipalAmount = principal
			o.IsPrincipal = true
		}
		out = append(out, o)
	}
	return out, nil
}
