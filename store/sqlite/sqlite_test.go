package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
	"github.com/warp/payout-engine/store/sqlite"
)

// =============================================================================
// HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func obligation(id string, month int) schedule.Obligation {
	return schedule.Obligation{
		ID:              id,
		CustomerID:      "c1",
		PayoutMonth:     month,
		DueDate:         date(2024, time.Month(1+month), 15),
		StartDate:       date(2024, time.January, 10),
		Kind:            schedule.KindMonthly,
		Amount:          decimal.RequireFromString("1000.10"),
		InterestAmount:  decimal.RequireFromString("1000.10"),
		PrincipalAmount: decimal.Zero,
	}
}

func customer(id string, status portfolio.ApprovalStatus, invested generic.TimePoint, updated time.Time) portfolio.Customer {
	return portfolio.Customer{
		ID:             generic.CustomerID(id),
		Name:           "Customer " + id,
		AgentID:        "a1",
		PlanID:         "p1",
		Amount:         decimal.RequireFromString("100000"),
		InvestmentDate: invested,
		Status:         status,
		CreatedAt:      updated,
		UpdatedAt:      updated,
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func TestStore_Agents(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveAgent(ctx, commission.AgentNode{ID: "root", Name: "Root", Percent: decimal.NewFromInt(10), Approved: true}))
	require.NoError(t, s.SaveAgent(ctx, commission.AgentNode{ID: "leaf", Name: "Leaf", ParentID: "root", Percent: decimal.RequireFromString("2.5")}))
	// Saving again replaces
	require.NoError(t, s.SaveAgent(ctx, commission.AgentNode{ID: "leaf", Name: "Leaf", ParentID: "root", Percent: decimal.RequireFromString("3"), Approved: true}))

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, generic.AgentID("leaf"), agents[0].ID)
	assert.Equal(t, generic.AgentID("root"), agents[0].ParentID)
	assert.True(t, agents[0].Percent.Equal(decimal.NewFromInt(3)))
	assert.True(t, agents[0].Approved)
}

func TestStore_PlansKeepPositionOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"silver", "gold"} {
		require.NoError(t, s.SavePlan(ctx, portfolio.PlanRecord{
			ID: id, Kind: portfolio.KindGift, Name: id, ConfigJSON: `{}`,
			Active: true, Position: i, CreatedAt: now, UpdatedAt: now,
		}))
	}

	plans, err := s.ListPlans(ctx, portfolio.KindGift)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "silver", plans[0].ID)
	assert.Equal(t, "gold", plans[1].ID)
	assert.Equal(t, now, plans[0].CreatedAt)

	require.NoError(t, s.SetPlanActive(ctx, portfolio.KindGift, "gold", false))
	gold, err := s.GetPlan(ctx, portfolio.KindGift, "gold")
	require.NoError(t, err)
	assert.False(t, gold.Active)

	missing, err := s.GetPlan(ctx, portfolio.KindBonus, "gold")
	require.NoError(t, err)
	assert.Nil(t, missing, "kind is part of the key")

	err = s.SetPlanActive(ctx, portfolio.KindBonus, "nope", false)
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestStore_ListApprovedInPeriod(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCustomer(ctx, customer("feb-end", portfolio.StatusApproved, date(2024, time.February, 29), now)))
	require.NoError(t, s.SaveCustomer(ctx, customer("mar-first", portfolio.StatusApproved, date(2024, time.March, 1), now)))
	require.NoError(t, s.SaveCustomer(ctx, customer("mar-pending", portfolio.StatusPending, date(2024, time.March, 5), now)))
	require.NoError(t, s.SaveCustomer(ctx, customer("apr-first", portfolio.StatusApproved, date(2024, time.April, 1), now)))

	got, err := s.ListApprovedInPeriod(ctx, generic.MonthPeriod(2024, time.March))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.CustomerID("mar-first"), got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(100000)))
	assert.True(t, got[0].InvestmentDate.Equal(date(2024, time.March, 1)))
}

func TestStore_DeleteRejectedBefore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cutoff := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCustomer(ctx, customer("old", portfolio.StatusRejected, date(2024, time.March, 1), cutoff.Add(-time.Hour))))
	require.NoError(t, s.SaveCustomer(ctx, customer("fresh", portfolio.StatusRejected, date(2024, time.March, 1), cutoff.Add(time.Hour))))
	require.NoError(t, s.SaveCustomer(ctx, customer("kept", portfolio.StatusApproved, date(2024, time.March, 1), cutoff.Add(-time.Hour))))

	n, err := s.DeleteRejectedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := s.GetCustomer(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
	fresh, err := s.GetCustomer(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

// =============================================================================
// AT-MOST-ONCE
// =============================================================================

func TestStore_ObligationsUniquePerMonth(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.InsertObligations(ctx, []schedule.Obligation{obligation("o1", 1), obligation("o2", 2)}))

	err := s.InsertObligations(ctx, []schedule.Obligation{obligation("o3", 2)})
	code, ok := generic.ViolationCode(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, generic.CodeDuplicateSchedule, code)

	n, err := s.CountObligations(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.ListObligations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1000.1", list[0].Amount.String())
	assert.Equal(t, "2024-02-15", list[0].DueDate.String())
}

func TestStore_MarkObligationPaidOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.InsertObligations(ctx, []schedule.Obligation{obligation("o1", 1)}))

	paidAt := time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC)
	o := obligation("o1", 1)
	o.Paid, o.PaidAt, o.Method, o.Reference = true, &paidAt, generic.MethodOnline, "UTR-1"
	require.NoError(t, s.MarkObligationPaid(ctx, o))

	got, err := s.GetObligation(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, paidAt, *got.PaidAt)
	assert.Equal(t, generic.MethodOnline, got.Method)

	err = s.MarkObligationPaid(ctx, o)
	code, _ := generic.ViolationCode(err)
	assert.Equal(t, generic.CodeAlreadyPaid, code)
}

func TestStore_PenaltyOncePerInstallment(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := deposit.Penalty{
		ID: "pen-1", CustomerID: "rd1", InstallmentID: "i1",
		Amount: decimal.NewFromInt(1000), Month: "2024-03", Reason: deposit.PenaltyReason,
		CreatedAt: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertPenalty(ctx, p))

	exists, err := s.PenaltyExists(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, exists)

	p.ID = "pen-2"
	code, _ := generic.ViolationCode(s.InsertPenalty(ctx, p))
	assert.Equal(t, generic.CodeDuplicatePenalty, code)
}

func TestStore_GiftGrantUniquePerAgentMonth(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	grant := func(id string, plan generic.PlanID) rewards.Grant {
		return rewards.Grant{
			ID: id, Kind: rewards.KindGift, AgentID: "a1", PlanID: plan, Period: "2024-03",
			Investors: 3, Amount: decimal.NewFromInt(500000),
			Reward: rewards.Reward{Type: rewards.RewardPhysical, Amount: decimal.Zero, Description: "Watch"},
		}
	}

	require.NoError(t, s.InsertGrants(ctx, []rewards.Grant{grant("g1", "silver")}))
	code, _ := generic.ViolationCode(s.InsertGrants(ctx, []rewards.Grant{grant("g2", "gold")}))
	assert.Equal(t, generic.CodeDuplicateGrant, code)

	// A bonus for the same agent and month is a separate key
	bonus := grant("g3", "b1")
	bonus.Kind = rewards.KindBonus
	require.NoError(t, s.InsertGrants(ctx, []rewards.Grant{bonus}))

	grants, err := s.ListGrants(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "Watch", grants[0].Reward.Description)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx portfolio.Store) error {
		require.NoError(t, tx.InsertObligations(ctx, []schedule.Obligation{obligation("o1", 1)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountObligations(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithTx(ctx, func(tx portfolio.Store) error {
		return tx.InsertObligations(ctx, []schedule.Obligation{obligation("o1", 1)})
	})
	require.NoError(t, err)

	n, err := s.CountObligations(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// DRIVER FAILURES
// =============================================================================

func TestStore_QueryFailureIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := sqlite.NewWithDB(db)

	mock.ExpectQuery("SELECT COUNT").WithArgs("c1").WillReturnError(errors.New("disk I/O error"))

	_, err = s.CountObligations(context.Background(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count obligations")
	assert.False(t, generic.IsInvariant(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UniqueFailureFromDriverMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := sqlite.NewWithDB(db)

	mock.ExpectExec("INSERT INTO rd_penalties").
		WillReturnError(errors.New("UNIQUE constraint failed: rd_penalties.installment_id"))

	err = s.InsertPenalty(context.Background(), deposit.Penalty{ID: "p", InstallmentID: "i1", Amount: decimal.NewFromInt(1000)})
	code, ok := generic.ViolationCode(err)
	require.True(t, ok)
	assert.Equal(t, generic.CodeDuplicatePenalty, code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
