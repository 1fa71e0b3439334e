package rewards_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

var march = generic.MonthPeriod(2025, time.March)

func inv(agent, amount string, day int, approved bool) rewards.Investment {
	return rewards.Investment{
		CustomerID: generic.CustomerID("c-" + agent + amount),
		AgentID:    generic.AgentID(agent),
		Amount:     money(amount),
		Date:       generic.NewTimePoint(2025, time.March, day),
		Approved:   approved,
	}
}

func bonusPlan(id string, investors int, amount string) rewards.BonusPlan {
	return rewards.BonusPlan{
		ID:       generic.PlanID(id),
		Name:     id,
		Targets:  rewards.Targets{Investors: investors, Amount: money(amount)},
		Reward:   rewards.Reward{Type: rewards.RewardBonus, Amount: money("5000")},
		Validity: generic.Period{Start: generic.NewTimePoint(2025, 1, 1), End: generic.NewTimePoint(2025, 7, 1)},
		Active:   true,
	}
}

func giftPlan(id, amount string) rewards.GiftPlan {
	return rewards.GiftPlan{
		ID:      generic.PlanID(id),
		Name:    id,
		Targets: rewards.Targets{Amount: money(amount)},
		Reward:  rewards.Reward{Type: rewards.RewardPhysical, Description: id},
		Active:  true,
	}
}

func grantedAgents(grants []rewards.Grant) []generic.AgentID {
	var ids []generic.AgentID
	for _, g := range grants {
		ids = append(ids, g.AgentID)
	}
	return ids
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregate_OnlyApprovedInsidePeriod(t *testing.T) {
	invs := []rewards.Investment{
		inv("a1", "1000", 1, true),
		inv("a1", "2500", 31, true),
		inv("a1", "9999", 10, false),
		{AgentID: "a1", Amount: money("777"), Date: generic.NewTimePoint(2025, 4, 1), Approved: true},
		{AgentID: "", Amount: money("50"), Date: generic.NewTimePoint(2025, 3, 3), Approved: true},
		inv("a0", "10", 2, true),
	}

	act := rewards.Aggregate(invs, march)

	require.Len(t, act, 2)
	assert.Equal(t, generic.AgentID("a0"), act[0].AgentID)
	assert.Equal(t, 2, act[1].Investors)
	assert.True(t, money("3500").Equal(act[1].Amount))
}

// =============================================================================
// BONUS PLANS (multi-plan)
// =============================================================================

func TestBonuses_ZeroActivityNeverGranted(t *testing.T) {
	// GIVEN: a plan with zero targets and an agent with nothing approved
	plans := []rewards.BonusPlan{bonusPlan("free", 0, "0")}
	invs := []rewards.Investment{inv("idle", "5000", 5, false)}

	// WHEN: ticking March
	grants := rewards.Tick(invs, rewards.Catalog{Bonuses: plans}, march, rewards.Issued{})

	// THEN: no grant
	assert.Empty(t, grants)
}

func TestBonuses_InvestorCountOrAmount(t *testing.T) {
	// GIVEN: target 3 investors OR 500,000
	plans := []rewards.BonusPlan{bonusPlan("q1", 3, "500000")}
	invs := []rewards.Investment{
		// by-count: 3 small investments
		inv("by-count", "100", 2, true), inv("by-count", "100", 3, true), inv("by-count", "100", 4, true),
		// by-amount: 1 large investment
		inv("by-amount", "600000", 5, true),
		// neither
		inv("neither", "1000", 6, true), inv("neither", "1000", 7, true),
	}

	grants := rewards.Bonuses(rewards.Aggregate(invs, march), plans, march, rewards.Issued{})

	assert.ElementsMatch(t, []generic.AgentID{"by-count", "by-amount"}, grantedAgents(grants))
	for _, g := range grants {
		assert.Equal(t, rewards.KindBonus, g.Kind)
		assert.Equal(t, "2025-03", g.Period)
		assert.False(t, g.Rewarded)
		assert.Equal(t, generic.MethodNone, g.Method)
	}
}

func TestBonuses_EachPlanIndependently(t *testing.T) {
	plans := []rewards.BonusPlan{bonusPlan("p1", 1, "0"), bonusPlan("p2", 1, "0")}
	invs := []rewards.Investment{inv("a1", "100", 2, true)}

	grants := rewards.Bonuses(rewards.Aggregate(invs, march), plans, march, rewards.Issued{})

	require.Len(t, grants, 2)
	assert.NotEqual(t, grants[0].PlanID, grants[1].PlanID)
}

func TestBonuses_SkipsInactiveAndOutOfWindowPlans(t *testing.T) {
	inactive := bonusPlan("inactive", 1, "0")
	inactive.Active = false
	past := bonusPlan("past", 1, "0")
	past.Validity = generic.Period{Start: generic.NewTimePoint(2024, 1, 1), End: generic.NewTimePoint(2025, 3, 1)}

	invs := []rewards.Investment{inv("a1", "100", 2, true)}
	grants := rewards.Bonuses(rewards.Aggregate(invs, march), []rewards.BonusPlan{inactive, past}, march, rewards.Issued{})

	assert.Empty(t, grants)
}

// =============================================================================
// GIFT CATALOG (single-grant)
// =============================================================================

func TestGifts_FirstMatchingPlanInCatalogOrder(t *testing.T) {
	// GIVEN: catalog ordered watch(50k), phone(10k), pen(1k)
	catalog := []rewards.GiftPlan{giftPlan("watch", "50000"), giftPlan("phone", "10000"), giftPlan("pen", "1000")}
	invs := []rewards.Investment{inv("a1", "20000", 3, true)}

	// WHEN: a1 brought in 20,000
	grants := rewards.Gifts(rewards.Aggregate(invs, march), catalog, march, rewards.Issued{})

	// THEN: exactly one grant, for the phone
	require.Len(t, grants, 1)
	assert.Equal(t, generic.PlanID("phone"), grants[0].PlanID)
	assert.Equal(t, rewards.RewardPhysical, grants[0].Reward.Type)
}

func TestGifts_ZeroTargetStillNeedsActivity(t *testing.T) {
	catalog := []rewards.GiftPlan{giftPlan("anything", "0")}

	grants := rewards.Gifts(nil, catalog, march, rewards.Issued{})

	assert.Empty(t, grants)
}

func TestGifts_OneGiftPerAgentPerMonthWhateverThePlan(t *testing.T) {
	catalog := []rewards.GiftPlan{giftPlan("pen", "1000")}
	invs := []rewards.Investment{inv("a1", "2000", 3, true)}
	issued := rewards.NewIssued([]rewards.Grant{{Kind: rewards.KindGift, AgentID: "a1", PlanID: "retired-plan", Period: "2025-03"}})

	grants := rewards.Gifts(rewards.Aggregate(invs, march), catalog, march, issued)

	assert.Empty(t, grants)
}

// =============================================================================
// TICK
// =============================================================================

func TestTick_RerunIsNoOp(t *testing.T) {
	// GIVEN: one gift and one bonus earned in March
	c := rewards.Catalog{
		Gifts:   []rewards.GiftPlan{giftPlan("pen", "1000")},
		Bonuses: []rewards.BonusPlan{bonusPlan("q1", 1, "0")},
	}
	invs := []rewards.Investment{inv("a1", "2000", 3, true)}

	// WHEN: ticking twice, persisting the first result in between
	first := rewards.Tick(invs, c, march, rewards.Issued{})
	second := rewards.Tick(invs, c, march, rewards.NewIssued(first))

	// THEN: the second run produces nothing
	assert.Len(t, first, 2)
	assert.Empty(t, second)
}

func TestTick_NextMonthIsIndependent(t *testing.T) {
	c := rewards.Catalog{Bonuses: []rewards.BonusPlan{bonusPlan("q1", 1, "0")}}
	invs := []rewards.Investment{inv("a1", "2000", 3, true), {AgentID: "a1", Amount: money("1"), Date: generic.NewTimePoint(2025, 4, 9), Approved: true}}

	first := rewards.Tick(invs, c, march, rewards.Issued{})
	january := rewards.Tick(invs, c, march.Previous().Previous(), rewards.NewIssued(first))
	next := rewards.Tick(invs, c, generic.MonthPeriod(2025, time.April), rewards.NewIssued(first))

	assert.Empty(t, january)
	require.Len(t, next, 1)
	assert.Equal(t, "2025-04", next[0].Period)
}

// =============================================================================
// CATALOG MAINTENANCE
// =============================================================================

func TestExpired_DeactivatesEndedPlansOnce(t *testing.T) {
	ended := bonusPlan("ended", 1, "0")
	ended.Validity.End = generic.NewTimePoint(2025, 3, 1)
	running := bonusPlan("running", 1, "0")
	already := bonusPlan("already", 1, "0")
	already.Validity.End = generic.NewTimePoint(2025, 1, 1)
	already.Active = false

	now := time.Date(2025, 3, 1, 0, 30, 0, 0, time.UTC)
	out := rewards.Expired([]rewards.BonusPlan{ended, running, already}, now)

	require.Len(t, out, 1)
	assert.Equal(t, generic.PlanID("ended"), out[0].ID)
	assert.False(t, out[0].Active)
	assert.Empty(t, rewards.Expired(out, now))
}

func TestFulfil_OnlyOnce(t *testing.T) {
	g := rewards.Grant{ID: "g1", Kind: rewards.KindBonus}
	at := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	done, err := rewards.Fulfil(g, at, generic.MethodCash)
	require.NoError(t, err)
	assert.True(t, done.Rewarded)
	assert.Equal(t, generic.MethodCash, done.Method)

	_, err = rewards.Fulfil(done, at, generic.MethodCash)
	assert.True(t, generic.IsInvariant(err))
}
