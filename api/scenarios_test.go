package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_List(t *testing.T) {
	ts := newTestServer(t)

	var list []ScenarioDTO
	ts.data(ts.do(http.MethodGet, "/api/scenarios", nil), http.StatusOK, &list)
	require.Len(t, list, 3)

	var current *ScenarioDTO
	ts.data(ts.do(http.MethodGet, "/api/scenarios/current", nil), http.StatusOK, &current)
	assert.Nil(t, current)
}

func TestScenario_AgentNetwork(t *testing.T) {
	// GIVEN: a clean database
	ts := newTestServer(t)

	// WHEN: the agent network scenario loads
	ts.data(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "agent-network"}), http.StatusOK, nil)

	// THEN: three approved investments produced the full commission cascade
	var coms []CommissionDTO
	ts.data(ts.do(http.MethodGet, "/api/commissions", nil), http.StatusOK, &coms)
	assert.Len(t, coms, 8)

	var pending CustomerDTO
	ts.data(ts.do(http.MethodGet, "/api/customers/cust-004", nil), http.StatusOK, &pending)
	assert.Equal(t, "pending", pending.Status)

	var plans []PlanDTO
	ts.data(ts.do(http.MethodGet, "/api/plans/investment", nil), http.StatusOK, &plans)
	assert.Len(t, plans, 8)

	var current ScenarioDTO
	ts.data(ts.do(http.MethodGet, "/api/scenarios/current", nil), http.StatusOK, &current)
	assert.Equal(t, "agent-network", current.ID)
}

func TestScenario_RecurringDeposit(t *testing.T) {
	ts := newTestServer(t)
	ts.data(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "recurring-deposit"}), http.StatusOK, nil)

	var sched DepositScheduleDTO
	ts.data(ts.do(http.MethodGet, "/api/rd/customers/rd-001/installments", nil), http.StatusOK, &sched)
	require.Len(t, sched.Installments, 12)
	assert.True(t, sched.Installments[0].Paid)
	assert.True(t, sched.Installments[1].Paid)
	assert.False(t, sched.Installments[2].Paid)
	require.NotNil(t, sched.Maturity)
	assert.Equal(t, "65000.00", sched.Maturity.Amount, "one late payment")
}

func TestScenario_Incentives(t *testing.T) {
	// GIVEN: the clock in January 2024, so the scenario's month is December 2023
	ts := newTestServer(t)
	ts.data(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "incentives"}), http.StatusOK, nil)

	// THEN: the bonus from the second approval and the gift from the tick
	var grants []GrantDTO
	ts.data(ts.do(http.MethodGet, "/api/grants?period=2023-12", nil), http.StatusOK, &grants)
	require.Len(t, grants, 2)
	kinds := map[string]string{}
	for _, g := range grants {
		kinds[g.Kind] = g.PlanID
	}
	assert.Equal(t, "bonus-q", kinds["bonus"])
	assert.Equal(t, "gift-phone", kinds["gift"])
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	ts := newTestServer(t)
	ts.data(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "agent-network"}), http.StatusOK, nil)
	ts.data(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "recurring-deposit"}), http.StatusOK, nil)

	ts.failure(ts.do(http.MethodGet, "/api/customers/cust-001", nil), http.StatusNotFound)
}

func TestScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	errBody := ts.failure(ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}), http.StatusBadRequest)
	assert.Equal(t, "unknown_scenario", errBody.Code)

	errBody = ts.failure(ts.do(http.MethodPost, "/api/scenarios/load", nil), http.StatusBadRequest)
	require.Len(t, errBody.Details, 1)
	assert.Equal(t, "scenario_id", errBody.Details[0].Field)
}
