package factory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
)

func TestParsePlan_NumbersOrStrings(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(`{"id":"d12","name":"Direct","segment":"direct","payment_mode":"Monthly","duration_months":12,"return_percentage":1.5}`)
	require.NoError(t, err)
	assert.Equal(t, schedule.SegmentDirect, plan.Terms.Segment)
	assert.Equal(t, schedule.ModePeriodic, plan.Terms.Mode)
	assert.True(t, plan.Terms.ReturnPercent.Valid)
	assert.Equal(t, "1.5", plan.Terms.ReturnPercent.Decimal.String())

	plan, err = f.ParsePlan(`{"id":"re","name":"RE","segment":"REAL-ESTATE","payment_mode":"Buyback","duration_months":24,"return_percentage":"30"}`)
	require.NoError(t, err)
	assert.Equal(t, schedule.SegmentRealEstate, plan.Terms.Segment)
	assert.Equal(t, schedule.ModeBuyback, plan.Terms.Mode)
}

func TestParsePlan_Errors(t *testing.T) {
	f := factory.NewPlanFactory()
	cases := map[string]string{
		"malformed json":   `{"id":`,
		"missing duration": `{"id":"x","name":"x","segment":"DIRECT","payment_mode":"Monthly","return_percentage":1}`,
		"missing return":   `{"id":"x","name":"x","segment":"DIRECT","payment_mode":"Monthly","duration_months":3}`,
		"null return":      `{"id":"x","name":"x","segment":"DIRECT","payment_mode":"Monthly","duration_months":3,"return_percentage":null}`,
		"unknown mode":     `{"id":"x","name":"x","segment":"DIRECT","payment_mode":"Weekly","duration_months":3,"return_percentage":1}`,
		"missing segment":  `{"id":"x","name":"x","payment_mode":"Monthly","duration_months":3,"return_percentage":1}`,
		"missing id":       `{"name":"x","segment":"DIRECT","payment_mode":"Monthly","duration_months":3,"return_percentage":1}`,
	}
	for name, js := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParsePlan(js)
			var verr *generic.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestParseBonusPlan(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParseBonusPlan(factory.BonusPlanJSONString("q1", "Q1 Drive", 5, "500000", "10000", "2025-01-01", "2025-04-01"))
	require.NoError(t, err)

	assert.True(t, plan.Active)
	assert.Equal(t, 5, plan.Targets.Investors)
	assert.Equal(t, rewards.RewardBonus, plan.Reward.Type)
	assert.Equal(t, "10000", plan.Reward.Amount.String())
	assert.Equal(t, "[2025-01-01, 2025-04-01)", plan.Validity.String())

	_, err = f.ParseBonusPlan(factory.BonusPlanJSONString("q1", "Q1 Drive", 5, "500000", "10000", "2025-04-01", "2025-01-01"))
	assert.True(t, generic.IsClientError(err))

	_, err = f.ParseBonusPlan(`{"id":"x","name":"x","reward_type":"CASH","start_date":"2025-01-01","end_date":"2025-02-01"}`)
	assert.True(t, generic.IsClientError(err))
}

func TestParseGiftPlan(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParseGiftPlan(factory.GiftPlanJSONString("watch", "Watch", "50000", "Steel watch"))
	require.NoError(t, err)
	assert.Equal(t, rewards.RewardPhysical, plan.Reward.Type)
	assert.Equal(t, "Steel watch", plan.Reward.Description)

	_, err = f.ParseGiftPlan(`{"id":"x","name":"x","reward_type":"PHYSICAL"}`)
	assert.True(t, generic.IsClientError(err))
}

func TestParseRDPlan(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParseRDPlan(factory.RDPlanJSONString("rd12", "RD 12M", 12, "10"))
	require.NoError(t, err)
	assert.Equal(t, 12, plan.DurationMonths)

	_, err = f.ParseRDPlan(`{"id":"x","name":"x","return_percentage":1}`)
	assert.True(t, generic.IsClientError(err))
}

func TestStandardCatalog_AllParseAndGenerate(t *testing.T) {
	f := factory.NewPlanFactory()
	for _, js := range factory.StandardCatalog() {
		plan, err := f.ParsePlan(js)
		require.NoError(t, err, js)

		obs, err := schedule.Generate(schedule.Investment{
			CustomerID:     "c1",
			Principal:      generic.MustParseDecimal("100000"),
			InvestmentDate: generic.NewTimePoint(2025, 1, 10),
			Terms:          plan.Terms,
		}, 0)
		require.NoError(t, err, plan.ID)
		assert.NotEmpty(t, obs)
	}
}
