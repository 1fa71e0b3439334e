/*
Package deposit implements recurring deposits (RD): a customer pays a fixed
installment every month and receives a single maturity payout at the end.

LIFECYCLE:
  1. Approval: Generate emits `duration` installments (months 1..duration)
     and one maturity obligation due in month duration+1, all on the
     payout.DueDate convention of the start date.
  2. Payment: Pay marks an installment paid. When the paid date is after
     the due date a fixed penalty is recorded once and deducted from the
     outstanding maturity, floored at zero. Every payment runs a commission
     cascade on the installment amount.

MATURITY AMOUNT:
  round2(installment * duration * (1 + rate/100))

AT-MOST-ONCE:
  The engine is pure. The caller passes in what it already persisted
  (existing installment count, whether a penalty exists) and the engine
  refuses with an InvariantViolation instead of emitting a duplicate.

SEE ALSO:
  - engine.go: Generate and Pay
  - commission/: per-installment cascade
*/
package deposit

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// DefaultPenalty is the late-installment penalty unless configured otherwise.
var DefaultPenalty = decimal.NewFromInt(1000)

// PenaltyReason is recorded on every late-payment penalty.
const PenaltyReason = "Late installment payment"

// Plan holds the RD terms shared by every customer on it.
type Plan struct {
	ID             generic.PlanID
	Name           string
	DurationMonths int
	ReturnPercent  decimal.NullDecimal
}

// Account is one customer's deposit under a plan.
type Account struct {
	CustomerID        generic.CustomerID
	AgentID           generic.AgentID
	Plan              Plan
	InstallmentAmount decimal.Decimal
	StartDate         generic.TimePoint
}

// Installment is one monthly deposit owed by the customer.
type Installment struct {
	ID         string
	CustomerID generic.CustomerID
	Seq        int
	DueDate    generic.TimePoint
	Amount     decimal.Decimal

	Paid      bool
	PaidAt    *time.Time
	Method    generic.PaymentMethod
	Reference string
}

// Maturity is the lump sum owed to the customer at the end of the term.
// Its amount only ever decreases, through penalty deductions.
type Maturity struct {
	ID         string
	CustomerID generic.CustomerID
	DueDate    generic.TimePoint
	Amount     decimal.Decimal
	Paid       bool
	PaidAt     *time.Time
}

// Penalty records a late installment. At most one exists per installment.
type Penalty struct {
	ID            string
	CustomerID    generic.CustomerID
	InstallmentID string
	Amount        decimal.Decimal
	Month         string // YYYY-MM of the paid date
	Reason        string
	CreatedAt     time.Time
}

// Schedule is the output of Generate.
type Schedule struct {
	Installments []Installment
	Maturity     Maturity
}
