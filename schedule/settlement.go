package schedule

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// SETTLEMENT - what is still owed on an investment
// =============================================================================

type SettlementType string

const (
	PayableToCustomer SettlementType = "PAYABLE_TO_CUSTOMER"
	Overpaid          SettlementType = "OVERPAID"
	Settled           SettlementType = "SETTLED"
)

// Settlement compares the principal at stake with what was paid out.
type Settlement struct {
	Invested  decimal.Decimal
	Principal decimal.Decimal
	TotalPaid decimal.Decimal
	Amount    decimal.Decimal
	Type      SettlementType
}

// Settle computes the settlement of inv given its obligations. For
// INFRASTRUCTURE the principal is the invested amount net of the purchase
// discount; other segments ignore the discount. Only paid obligations count.
func Settle(inv Investment, obligations []Obligation) Settlement {
	principal := generic.Round2(inv.Principal)
	if inv.Terms.Segment == SegmentInfrastructure && inv.Terms.Discount.IsPositive() {
		net := decimal.NewFromInt(1).Sub(inv.Terms.Discount.Div(generic.Hundred))
		principal = generic.Round2(inv.Principal.Mul(net))
	}

	paid := decimal.Zero
	for _, o := range obligations {
		if o.Paid {
			paid = paid.Add(o.Amount)
		}
	}

	s := Settlement{
		Invested:  inv.Principal,
		Principal: principal,
		TotalPaid: paid,
		Amount:    principal.Sub(paid),
	}
	switch s.Amount.Sign() {
	case 1:
		s.Type = PayableToCustomer
	case -1:
		s.Type = Overpaid
	default:
		s.Type = Settled
	}
	return s
}
