/*
Package portfolio is the application layer around the payout engines.

PURPOSE:
  The engines in schedule/, commission/, deposit/ and rewards/ are pure:
  they take records and return records. This package loads those records
  from a Store, calls the engines on approval, payment and tick events, and
  writes the results back inside one store transaction.

EVENTS:
  ApproveInvestment  -> schedule.Generate, commission.Cascade, rewards.Bonuses
  ApproveDeposit     -> deposit.Engine.Generate
  PayInstallment     -> deposit.Engine.Pay (penalty + cascade)
  PayObligation      -> schedule.MarkPaid
  PayCommission      -> commission.MarkPaid
  FulfilGrant        -> rewards.Fulfil
  RunMonthlyTick     -> rewards.Tick
  DeactivateExpired  -> rewards.Expired
  PurgeRejected      -> store cleanup

AT-MOST-ONCE:
  Preconditions (existing obligation count, existing penalty, issued grants)
  are read inside the same transaction the results are written in. The
  SQLite store backs them with unique indexes, so a concurrent duplicate
  fails on insert instead of slipping through.

SEE ALSO:
  - store.go: Store interface
  - service.go: event handlers
  - store/sqlite/: the SQLite implementation
*/
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// RECORDS
// =============================================================================

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Customer is an investment made by a customer under a plan.
type Customer struct {
	ID             generic.CustomerID
	Name           string
	AgentID        generic.AgentID
	PlanID         generic.PlanID
	Amount         decimal.Decimal
	InvestmentDate generic.TimePoint
	Status         ApprovalStatus
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RDCustomer is a recurring-deposit account.
type RDCustomer struct {
	ID                generic.CustomerID
	Name              string
	AgentID           generic.AgentID
	PlanID            generic.PlanID
	InstallmentAmount decimal.Decimal
	StartDate         generic.TimePoint
	Status            ApprovalStatus
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PlanKind separates the four plan catalogs.
type PlanKind string

const (
	KindInvestment PlanKind = "investment"
	KindRD         PlanKind = "rd"
	KindBonus      PlanKind = "bonus"
	KindGift       PlanKind = "gift"
)

// PlanRecord stores a plan as the JSON it was defined with. Position keeps
// catalog order, which decides gift matching.
type PlanRecord struct {
	ID         string
	Kind       PlanKind
	Name       string
	ConfigJSON string
	Active     bool
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
