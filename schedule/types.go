/*
Package schedule turns an approved investment into its payout obligations.

PURPOSE:
  Given plan terms, a principal and an investment date, produce the full,
  ordered list of obligations the company owes the customer. The shape of
  the schedule depends on the (segment, payment mode) pair; each pair is a
  variant registered in variants.go.

KEY CONCEPTS:
  - PlanTerms: segment, payment mode, duration, return percentage
  - Obligation: one dated payable (interest, principal, or both)
  - Variant: a pure function producing the obligations of one shape

INVARIANTS:
  - At most one schedule per investment (existing count must be 0)
  - At most one obligation carries the principal flag, and it is the last
  - Obligations are ordered by due date and generation is deterministic

SEE ALSO:
  - variants.go: the segment x mode registry
  - generator.go: validation and dispatch
  - payout/dates.go: due-date rule
*/
package schedule

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// SEGMENT
// =============================================================================

// Segment is the product category of an investment plan.
type Segment string

const (
	SegmentPreIPO         Segment = "PRE-IPO"
	SegmentRealEstate     Segment = "REAL ESTATE"
	SegmentDirect         Segment = "DIRECT"
	SegmentInfrastructure Segment = "INFRASTRUCTURE"
	SegmentTravel         Segment = "TRAVEL"
	SegmentInvestment     Segment = "INVESTMENT"
)

// ParseSegment normalizes case, spacing and the hyphenated real-estate
// spelling. Unknown segments are kept as-is and get the default schedule.
func ParseSegment(s string) Segment {
	norm := strings.ToUpper(strings.TrimSpace(s))
	switch norm {
	case "REAL-ESTATE", "REAL_ESTATE", "REALESTATE":
		return SegmentRealEstate
	case "PREIPO", "PRE IPO", "PRE_IPO":
		return SegmentPreIPO
	}
	return Segment(norm)
}

// =============================================================================
// PAYMENT MODE
// =============================================================================

type PaymentMode string

const (
	ModePeriodic PaymentMode = "Monthly"
	ModeBuyback  PaymentMode = "Buyback"
)

// ParseMode accepts "Monthly"/"Periodic" and "Buyback" in any case.
func ParseMode(s string) (PaymentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "periodic":
		return ModePeriodic, nil
	case "buyback":
		return ModeBuyback, nil
	}
	return "", generic.Invalid("payment_mode", "must be Monthly or Buyback, got "+s)
}

// =============================================================================
// PLAN TERMS & INVESTMENT
// =============================================================================

// PlanTerms are the parameters of a plan that shape its schedule.
type PlanTerms struct {
	Segment        Segment
	Mode           PaymentMode
	DurationMonths int
	ReturnPercent  decimal.NullDecimal
	// Discount is the INFRASTRUCTURE purchase discount in percent. Other
	// segments ignore it.
	Discount decimal.Decimal
}

// Investment is an approved customer investment under a plan.
type Investment struct {
	CustomerID     generic.CustomerID
	Principal      decimal.Decimal
	InvestmentDate generic.TimePoint
	Terms          PlanTerms
}

// =============================================================================
// OBLIGATION
// =============================================================================

// Kind is the payment type of an obligation as shown to customers.
type Kind string

const (
	KindMonthly  Kind = "Monthly"
	KindBuyback  Kind = "Buyback"
	KindSixMonth Kind = "6-Month-Interval"
)

// Obligation is one dated payable owed to a customer. ID is empty until
// the obligation is persisted.
type Obligation struct {
	ID              string
	CustomerID      generic.CustomerID
	PayoutMonth     int
	DueDate         generic.TimePoint
	StartDate       generic.TimePoint
	Kind            Kind
	Amount          decimal.Decimal
	InterestAmount  decimal.Decimal
	PrincipalAmount decimal.Decimal
	IsPrincipal     bool

	Paid      bool
	PaidAt    *time.Time
	Method    generic.PaymentMethod
	Reference string
}

// Plan is a named catalog entry customers invest under.
type Plan struct {
	ID    generic.PlanID
	Name  string
	Terms PlanTerms
}
