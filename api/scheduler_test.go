package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"go.uber.org/zap/zaptest"
)

var testSpecs = config.SchedulerConfig{
	Enabled:        true,
	MonthlySpec:    "1 1 1 * *",
	DeactivateSpec: "30 0 * * *",
	CleanupSpec:    "0 0 * * *",
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	ts := newTestServer(t)
	specs := testSpecs
	specs.CleanupSpec = "every night"

	_, err := NewScheduler(ts.handler.Service, zaptest.NewLogger(t), specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge_rejected")
}

func TestScheduler_JobsUseServiceClock(t *testing.T) {
	// GIVEN: a gift-qualifying January, and the clock on Feb 1
	ts := newTestServer(t)
	ts.seed()
	ctx := context.Background()
	svc := ts.handler.Service
	_, err := svc.DefinePlan(ctx, portfolio.KindGift, factory.GiftPlanJSONString("gift-phone", "Phone", "100000", "Smartphone"))
	require.NoError(t, err)
	_, err = svc.DefinePlan(ctx, portfolio.KindBonus,
		factory.BonusPlanJSONString("bonus-jan", "January", 5, "900000", "5000", "2024-01-01", "2024-02-01"))
	require.NoError(t, err)
	ts.invest("c1", "100000", "2024-01-05")
	_, err = svc.ApproveInvestment(ctx, "c1", ts.now)
	require.NoError(t, err)
	ts.now = time.Date(2024, 2, 1, 1, 1, 0, 0, time.UTC)

	s, err := NewScheduler(svc, zaptest.NewLogger(t), testSpecs)
	require.NoError(t, err)

	// WHEN: the monthly job runs twice
	grants, err := s.RunMonthlyTick(ctx)
	require.NoError(t, err)
	again, err := s.RunMonthlyTick(ctx)
	require.NoError(t, err)

	// THEN: January is evaluated once
	require.Len(t, grants, 1)
	assert.Equal(t, "2024-01", grants[0].Period)
	assert.Equal(t, generic.AgentID("leaf"), grants[0].AgentID)
	assert.Empty(t, again)

	// AND: the January bonus plan is past its validity
	require.NoError(t, s.DeactivateExpired(ctx))
	plan, err := ts.handler.Store.GetPlan(ctx, portfolio.KindBonus, "bonus-jan")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.False(t, plan.Active)

	require.NoError(t, s.PurgeRejected(ctx))
}

func TestScheduler_StartStop(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewScheduler(ts.handler.Service, zaptest.NewLogger(t), testSpecs)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
