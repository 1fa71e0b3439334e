package portfolio

import (
	"context"
	"time"

	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
)

// =============================================================================
// STORE - persistence the service depends on
// =============================================================================
//
// Getters return (nil, nil) when the record doesn't exist; the service turns
// that into a NotFoundError. Inserts that would break a uniqueness guarantee
// return a generic.InvariantViolation.

// AgentStore persists the agent hierarchy.
type AgentStore interface {
	SaveAgent(ctx context.Context, a commission.AgentNode) error
	ListAgents(ctx context.Context) ([]commission.AgentNode, error)
}

// PlanStore persists plan definitions of every kind.
type PlanStore interface {
	SavePlan(ctx context.Context, p PlanRecord) error
	GetPlan(ctx context.Context, kind PlanKind, id string) (*PlanRecord, error)
	ListPlans(ctx context.Context, kind PlanKind) ([]PlanRecord, error)
	SetPlanActive(ctx context.Context, kind PlanKind, id string, active bool) error
}

// CustomerStore persists investments and RD accounts.
type CustomerStore interface {
	SaveCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id generic.CustomerID) (*Customer, error)
	// ListApprovedInPeriod returns approved customers whose investment date is in p.
	ListApprovedInPeriod(ctx context.Context, p generic.Period) ([]Customer, error)
	// DeleteRejectedBefore removes rejected customers last updated before cutoff.
	DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int, error)

	SaveRDCustomer(ctx context.Context, c RDCustomer) error
	GetRDCustomer(ctx context.Context, id generic.CustomerID) (*RDCustomer, error)
}

// ObligationStore persists payout and commission obligations.
type ObligationStore interface {
	CountObligations(ctx context.Context, customerID generic.CustomerID) (int, error)
	InsertObligations(ctx context.Context, obs []schedule.Obligation) error
	ListObligations(ctx context.Context, customerID generic.CustomerID) ([]schedule.Obligation, error)
	GetObligation(ctx context.Context, id string) (*schedule.Obligation, error)
	MarkObligationPaid(ctx context.Context, o schedule.Obligation) error

	InsertCommissions(ctx context.Context, coms []commission.Obligation) error
	// ListCommissions filters by agent; an empty id lists all.
	ListCommissions(ctx context.Context, agentID generic.AgentID) ([]commission.Obligation, error)
	GetCommission(ctx context.Context, id string) (*commission.Obligation, error)
	MarkCommissionPaid(ctx context.Context, o commission.Obligation) error
}

// DepositStore persists RD installments, maturities and penalties.
type DepositStore interface {
	CountInstallments(ctx context.Context, customerID generic.CustomerID) (int, error)
	InsertDepositSchedule(ctx context.Context, s deposit.Schedule) error
	ListInstallments(ctx context.Context, customerID generic.CustomerID) ([]deposit.Installment, error)
	GetInstallment(ctx context.Context, id string) (*deposit.Installment, error)
	MarkInstallmentPaid(ctx context.Context, inst deposit.Installment) error
	GetMaturity(ctx context.Context, customerID generic.CustomerID) (*deposit.Maturity, error)
	UpdateMaturityAmount(ctx context.Context, m deposit.Maturity) error
	PenaltyExists(ctx context.Context, installmentID string) (bool, error)
	InsertPenalty(ctx context.Context, p deposit.Penalty) error
}

// GrantStore persists incentive grants.
type GrantStore interface {
	// ListGrants filters by period key; an empty key lists all.
	ListGrants(ctx context.Context, period string) ([]rewards.Grant, error)
	InsertGrants(ctx context.Context, grants []rewards.Grant) error
	GetGrant(ctx context.Context, id string) (*rewards.Grant, error)
	MarkGrantRewarded(ctx context.Context, g rewards.Grant) error
}

// Store is everything the service needs.
type Store interface {
	AgentStore
	PlanStore
	CustomerStore
	ObligationStore
	DepositStore
	GrantStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
