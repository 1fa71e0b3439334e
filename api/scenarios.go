/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Every write goes through portfolio.Service, so a loaded
	scenario is exactly what the same API calls would have produced.

AVAILABLE SCENARIOS:

	agent-network:     Three-level agent chain, standard catalog, approved investments
	recurring-deposit: RD account with one on-time and one late installment
	incentives:        Bonus and gift plans, monthly tick over last month

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register the agent chain
 3. Define plans via factory presets
 4. Create and approve customers
 5. Optionally pay, or run the monthly tick

Dates are relative to the service clock so a freshly loaded scenario
always has something due in the current and previous months.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "agent-network"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Reset handler
  - factory/presets.go: Plan JSON builders
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "agent-network",
		Name:        "Agent Network",
		Description: "Three-level agent chain with differential commission on approved investments",
	},
	{
		ID:          "recurring-deposit",
		Name:        "Recurring Deposit",
		Description: "Monthly deposits with a late payment penalty deducted from maturity",
	},
	{
		ID:          "incentives",
		Name:        "Incentives",
		Description: "Bonus plan hit on approval plus gift catalog evaluated by the monthly tick",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.bind(w, r, &req) {
		return
	}

	var load func(context.Context, time.Time) error
	switch req.ScenarioID {
	case "agent-network":
		load = h.loadAgentNetworkScenario
	case "recurring-deposit":
		load = h.loadRecurringDepositScenario
	case "incentives":
		load = h.loadIncentivesScenario
	default:
		writeError(w, http.StatusBadRequest, "unknown_scenario", "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeServiceError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx, h.Service.Now()); err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadAgentNetworkScenario(ctx context.Context, now time.Time) error {
	if err := h.seedAgents(ctx); err != nil {
		return err
	}
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	lastMonth := generic.MonthOf(generic.DateOf(now)).Previous().Start
	for _, c := range []portfolio.Customer{
		{ID: "cust-001", Name: "Priya Nair", AgentID: "agent-leaf", PlanID: "preipo-12", Amount: decimal.NewFromInt(100000), InvestmentDate: lastMonth.AddDays(4)},
		{ID: "cust-002", Name: "Rahul Mehta", AgentID: "agent-mid", PlanID: "realestate-12", Amount: decimal.NewFromInt(250000), InvestmentDate: lastMonth.AddDays(19)},
		{ID: "cust-003", Name: "Anita Rao", AgentID: "agent-leaf", PlanID: "preipo-bb-24", Amount: decimal.NewFromInt(50000), InvestmentDate: lastMonth.AddDays(9)},
	} {
		if err := h.createAndApprove(ctx, c, now); err != nil {
			return err
		}
	}

	// One pending customer left for the approval flow.
	_, err := h.Service.CreateCustomer(ctx, portfolio.Customer{
		ID: "cust-004", Name: "Vikram Shah", AgentID: "agent-leaf", PlanID: "direct-12",
		Amount: decimal.NewFromInt(75000), InvestmentDate: generic.DateOf(now),
	})
	return err
}

func (h *Handler) loadRecurringDepositScenario(ctx context.Context, now time.Time) error {
	if err := h.seedAgents(ctx); err != nil {
		return err
	}
	if _, err := h.Service.DefinePlan(ctx, portfolio.KindRD, factory.RDPlanJSONString("rd-12", "RD 12M", 12, "10")); err != nil {
		return err
	}

	// Started three months ago so two installments are already due.
	start := generic.DateOf(now).AddMonths(-3)
	if _, err := h.Service.CreateRDCustomer(ctx, portfolio.RDCustomer{
		ID: "rd-001", Name: "Meera Iyer", AgentID: "agent-leaf", PlanID: "rd-12",
		InstallmentAmount: decimal.NewFromInt(5000), StartDate: start,
	}); err != nil {
		return err
	}
	sched, err := h.Service.ApproveDeposit(ctx, "rd-001", now)
	if err != nil {
		return err
	}
	if len(sched.Installments) < 2 {
		return fmt.Errorf("expected installments, got %d", len(sched.Installments))
	}

	first, second := sched.Installments[0], sched.Installments[1]
	if _, err := h.Service.PayInstallment(ctx, first.ID, first.DueDate.Time, generic.MethodOnline, "NEFT-0001"); err != nil {
		return err
	}
	late := second.DueDate.AddDays(5).Time
	_, err = h.Service.PayInstallment(ctx, second.ID, late, generic.MethodCash, "")
	return err
}

func (h *Handler) loadIncentivesScenario(ctx context.Context, now time.Time) error {
	if err := h.seedAgents(ctx); err != nil {
		return err
	}
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	lastMonth := generic.MonthOf(generic.DateOf(now)).Previous()
	validUntil := lastMonth.End.AddMonths(3)
	plans := []struct {
		kind portfolio.PlanKind
		json string
	}{
		{portfolio.KindBonus, factory.BonusPlanJSONString("bonus-q", "Quarter Sprint", 2, "200000", "10000",
			lastMonth.Start.String(), validUntil.String())},
		{portfolio.KindGift, factory.GiftPlanJSONString("gift-watch", "Watch", "500000", "Smart watch")},
		{portfolio.KindGift, factory.GiftPlanJSONString("gift-phone", "Phone", "250000", "Smartphone")},
	}
	for _, p := range plans {
		if _, err := h.Service.DefinePlan(ctx, p.kind, p.json); err != nil {
			return err
		}
	}

	for _, c := range []portfolio.Customer{
		{ID: "cust-101", Name: "Kiran Das", AgentID: "agent-leaf", PlanID: "preipo-12", Amount: decimal.NewFromInt(150000), InvestmentDate: lastMonth.Start.AddDays(2)},
		{ID: "cust-102", Name: "Leela Menon", AgentID: "agent-leaf", PlanID: "travel-18", Amount: decimal.NewFromInt(120000), InvestmentDate: lastMonth.Start.AddDays(11)},
	} {
		if err := h.createAndApprove(ctx, c, now); err != nil {
			return err
		}
	}

	_, err := h.Service.RunMonthlyTick(ctx, lastMonth)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// seedAgents registers agent-leaf (3%) -> agent-mid (6%) -> agent-root (10%).
func (h *Handler) seedAgents(ctx context.Context) error {
	for _, a := range []commission.AgentNode{
		{ID: "agent-root", Name: "Regional Head", Percent: decimal.NewFromInt(10), Approved: true},
		{ID: "agent-mid", Name: "Branch Manager", ParentID: "agent-root", Percent: decimal.NewFromInt(6), Approved: true},
		{ID: "agent-leaf", Name: "Field Agent", ParentID: "agent-mid", Percent: decimal.NewFromInt(3), Approved: true},
	} {
		if err := h.Service.RegisterAgent(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedCatalog(ctx context.Context) error {
	for _, planJSON := range factory.StandardCatalog() {
		if _, err := h.Service.DefinePlan(ctx, portfolio.KindInvestment, planJSON); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createAndApprove(ctx context.Context, c portfolio.Customer, at time.Time) error {
	if _, err := h.Service.CreateCustomer(ctx, c); err != nil {
		return err
	}
	_, err := h.Service.ApproveInvestment(ctx, c.ID, at)
	return err
}
