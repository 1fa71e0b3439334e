package schedule

import (
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// Generate returns the obligation schedule of an approved investment.
//
// existing is the number of obligations already persisted for the
// customer. A non-zero count means a schedule was generated before and
// Generate refuses with an InvariantViolation rather than emit a second one.
//
// The output depends only on inv: calling Generate twice with the same
// input yields identical obligations in identical order.
func Generate(inv Investment, existing int) ([]Obligation, error) {
	if err := validate(inv); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, generic.Violation(generic.CodeDuplicateSchedule,
			"customer %s already has %d obligations", inv.CustomerID, existing)
	}

	conv := payout.ConventionFor(inv.InvestmentDate)
	return variantFor(inv.Terms.Segment, inv.Terms.Mode)(inv, conv)
}

func validate(inv Investment) error {
	t := inv.Terms
	switch {
	case inv.CustomerID == "":
		return generic.Invalid("customer_id", "is required")
	case !inv.Principal.IsPositive():
		return generic.Invalid("principal", "must be positive")
	case inv.InvestmentDate.IsZero():
		return generic.Invalid("investment_date", "is required")
	case t.DurationMonths <= 0:
		return generic.Invalid("duration_months", "is required and must be positive")
	case !t.ReturnPercent.Valid:
		return generic.Invalid("return_percentage", "is required")
	case t.ReturnPercent.Decimal.IsNegative():
		return generic.Invalid("return_percentage", "must not be negative")
	case t.Mode != ModePeriodic && t.Mode != ModeBuyback:
		return generic.Invalid("payment_mode", "must be Monthly or Buyback")
	case t.Discount.IsNegative() || t.Discount.GreaterThanOrEqual(generic.Hundred):
		return generic.Invalid("discount", "must be in [0, 100)")
	}
	return nil
}

// MarkPaid records payment of o. An obligation is paid at most once.
func MarkPaid(o Obligation, at time.Time, method generic.PaymentMethod, reference string) (Obligation, error) {
	if o.Paid {
		return o, generic.Violation(generic.CodeAlreadyPaid, "obligation %s already paid", o.ID)
	}
	paidAt := at.UTC()
	o.Paid = true
	o.PaidAt = &paidAt
	o.Method = method
	o.Reference = reference
	return o, nil
}
