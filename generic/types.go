/*
Package generic provides the domain-agnostic primitives of the payout engine.

PURPOSE:
  Money arithmetic, calendar dates, evaluation windows and the error
  taxonomy shared by every engine package. Nothing here knows about
  segments, agents or deposits.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, rounded to 2 places at the point of computation
  - Identifiers: type-safe string ids for customers, agents and plans
  - PaymentMethod: how a payable was settled

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money
  2. Determinism: no clock reads, no ids generated here
  3. Type Safety: CustomerID and AgentID cannot be mixed up

USAGE:
  interest := generic.Round2(generic.PercentOf(principal, rate))

SEE ALSO:
  - time.go: TimePoint and month arithmetic
  - period.go: half-open evaluation windows
  - errors.go: ValidationError, NotFoundError, InvariantViolation
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Hundred is the percentage divisor.
var Hundred = decimal.NewFromInt(100)

// Twelve converts annual rates to monthly ones.
var Twelve = decimal.NewFromInt(12)

// Round2 rounds half away from zero to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// PercentOf returns amount * pct / 100, unrounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MustParseDecimal parses s, panicking on malformed input. Test and preset use only.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("generic: bad decimal %q: %v", s, err))
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type AgentID string
type PlanID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "Cash"
	MethodOnline PaymentMethod = "Online"
	MethodCheque PaymentMethod = "Cheq"
	MethodOther  PaymentMethod = "Other"
	MethodNone   PaymentMethod = "None"
)

// ParsePaymentMethod maps the wire value to a PaymentMethod. Empty means None.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCash, MethodOnline, MethodCheque, MethodOther, MethodNone:
		return PaymentMethod(s), nil
	case "":
		return MethodNone, nil
	}
	return "", Invalid("payment_method", fmt.Sprintf("unknown method %q", s))
}
