/*
Package rewards decides which agents earn incentive grants for a period.

PURPOSE:
  Agents bring in investments. At the end of each month the approved
  investments are aggregated per agent and matched against two catalogs:

  Gift catalog (single-grant):
    The first active gift plan, in catalog order, whose target amount the
    agent reached wins. One gift per agent per month at most.

  Bonus plans (multi-plan):
    Every active bonus plan whose validity window overlaps the period is
    checked independently. An agent qualifies when it reached the investor
    count OR the amount target. One grant per (agent, plan, month).

RULES SHARED BY BOTH:
  - Only approved investments dated inside [start, end) count
  - An agent with zero activity never qualifies, even against zero targets
  - Grants are created unrewarded; fulfilment is a separate transition
  - Grants already issued for the key are skipped, so a re-run is a no-op

KEY CONCEPTS:
  - Activity: investor count and amount per agent for a period
  - Issued: the grant keys the caller already persisted
  - Grant: the record to persist

SEE ALSO:
  - eligibility.go: Gifts, Bonuses, Tick
  - catalog.go: plan deactivation and grant fulfilment
*/
package rewards

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// REWARD
// =============================================================================

type RewardType string

const (
	RewardBonus    RewardType = "BONUS"
	RewardPhysical RewardType = "PHYSICAL"
)

// Reward is what a plan hands out: money for BONUS, an item for PHYSICAL.
type Reward struct {
	Type        RewardType
	Amount      decimal.Decimal
	Description string
}

// Targets are the thresholds a plan checks activity against.
type Targets struct {
	Investors int
	Amount    decimal.Decimal
}

// =============================================================================
// CATALOGS
// =============================================================================

// GiftPlan is an entry of the single-grant gift catalog. Catalog order
// matters: the first matching plan wins.
type GiftPlan struct {
	ID             generic.PlanID
	Name           string
	Targets        Targets
	Reward         Reward
	DurationMonths int
	Active         bool
}

// BonusPlan is a time-boxed incentive. Validity is [start, end).
type BonusPlan struct {
	ID       generic.PlanID
	Name     string
	Targets  Targets
	Reward   Reward
	Validity generic.Period
	Active   bool
}

// =============================================================================
// ACTIVITY
// =============================================================================

// Investment is the slice of a customer record eligibility looks at.
type Investment struct {
	CustomerID generic.CustomerID
	AgentID    generic.AgentID
	Amount     decimal.Decimal
	Date       generic.TimePoint
	Approved   bool
}

// Activity is one agent's aggregated performance over a period.
type Activity struct {
	AgentID   generic.AgentID
	Investors int
	Amount    decimal.Decimal
}

// =============================================================================
// GRANTS
// =============================================================================

type GrantKind string

const (
	KindGift  GrantKind = "gift"
	KindBonus GrantKind = "bonus"
)

// Grant is an earned incentive. ID is empty until persisted.
type Grant struct {
	ID        string
	Kind      GrantKind
	AgentID   generic.AgentID
	PlanID    generic.PlanID
	Period    string // YYYY-MM
	Investors int
	Amount    decimal.Decimal
	Reward    Reward

	Rewarded   bool
	RewardedAt *time.Time
	Method     generic.PaymentMethod
}

// GrantKey identifies a grant for at-most-once purposes.
type GrantKey struct {
	Kind    GrantKind
	AgentID generic.AgentID
	PlanID  generic.PlanID
	Period  string
}

// Key returns the grant's uniqueness key. Gift grants are unique per agent
// and month whatever plan matched, so their key leaves PlanID empty.
func (g Grant) Key() GrantKey {
	k := GrantKey{Kind: g.Kind, AgentID: g.AgentID, PlanID: g.PlanID, Period: g.Period}
	if g.Kind == KindGift {
		k.PlanID = ""
	}
	return k
}

// Issued is the set of grant keys already persisted.
type Issued map[GrantKey]bool

// NewIssued indexes existing grants.
func NewIssued(grants []Grant) Issued {
	issued := make(Issued, len(grants))
	for _, g := range grants {
		issued[g.Key()] = true
	}
	return issued
}
