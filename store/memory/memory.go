// Package memory provides an in-memory portfolio.TxStore for tests and
// throwaway runs. It enforces the same uniqueness keys as the SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
)

var _ portfolio.TxStore = (*Store)(nil)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu sync.Mutex
	st *state
}

type planKey struct {
	kind portfolio.PlanKind
	id   string
}

type state struct {
	agents       map[generic.AgentID]commission.AgentNode
	plans        map[planKey]portfolio.PlanRecord
	customers    map[generic.CustomerID]portfolio.Customer
	rdCustomers  map[generic.CustomerID]portfolio.RDCustomer
	obligations  map[string]schedule.Obligation
	commissions  map[string]commission.Obligation
	installments map[string]deposit.Installment
	maturities   map[generic.CustomerID]deposit.Maturity
	penalties    map[string]deposit.Penalty // by installment id
	grants       map[string]rewards.Grant
}

func New() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		agents:       make(map[generic.AgentID]commission.AgentNode),
		plans:        make(map[planKey]portfolio.PlanRecord),
		customers:    make(map[generic.CustomerID]portfolio.Customer),
		rdCustomers:  make(map[generic.CustomerID]portfolio.RDCustomer),
		obligations:  make(map[string]schedule.Obligation),
		commissions:  make(map[string]commission.Obligation),
		installments: make(map[string]deposit.Installment),
		maturities:   make(map[generic.CustomerID]deposit.Maturity),
		penalties:    make(map[string]deposit.Penalty),
		grants:       make(map[string]rewards.Grant),
	}
}

// clone copies every map. Records are values, so the copy is independent.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.agents {
		c.agents[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.rdCustomers {
		c.rdCustomers[k] = v
	}
	for k, v := range s.obligations {
		c.obligations[k] = v
	}
	for k, v := range s.commissions {
		c.commissions[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	for k, v := range s.maturities {
		c.maturities[k] = v
	}
	for k, v := range s.penalties {
		c.penalties[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	return c
}

// WithTx runs fn against a copy of the state and swaps it in only when fn
// succeeds. Writers are serialized for the whole transaction.
func (m *Store) WithTx(_ context.Context, fn func(portfolio.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := &Store{st: m.st.clone()}
	if err := fn(view); err != nil {
		return err
	}
	m.st = view.st
	return nil
}

func (m *Store) lock() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// AGENTS & PLANS
// =============================================================================

func (m *Store) SaveAgent(_ context.Context, a commission.AgentNode) error {
	defer m.lock()()
	m.st.agents[a.ID] = a
	return nil
}

func (m *Store) ListAgents(_ context.Context) ([]commission.AgentNode, error) {
	defer m.lock()()
	out := make([]commission.AgentNode, 0, len(m.st.agents))
	for _, a := range m.st.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) SavePlan(_ context.Context, p portfolio.PlanRecord) error {
	defer m.lock()()
	m.st.plans[planKey{p.Kind, p.ID}] = p
	return nil
}

func (m *Store) GetPlan(_ context.Context, kind portfolio.PlanKind, id string) (*portfolio.PlanRecord, error) {
	defer m.lock()()
	p, ok := m.st.plans[planKey{kind, id}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Store) ListPlans(_ context.Context, kind portfolio.PlanKind) ([]portfolio.PlanRecord, error) {
	defer m.lock()()
	var out []portfolio.PlanRecord
	for k, p := range m.st.plans {
		if k.kind == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) SetPlanActive(_ context.Context, kind portfolio.PlanKind, id string, active bool) error {
	defer m.lock()()
	k := planKey{kind, id}
	p, ok := m.st.plans[k]
	if !ok {
		return generic.NotFound("plan", id)
	}
	p.Active = active
	m.st.plans[k] = p
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Store) SaveCustomer(_ context.Context, c portfolio.Customer) error {
	defer m.lock()()
	m.st.customers[c.ID] = c
	return nil
}

func (m *Store) GetCustomer(_ context.Context, id generic.CustomerID) (*portfolio.Customer, error) {
	defer m.lock()()
	c, ok := m.st.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Store) ListApprovedInPeriod(_ context.Context, p generic.Period) ([]portfolio.Customer, error) {
	defer m.lock()()
	var out []portfolio.Customer
	for _, c := range m.st.customers {
		if c.Status == portfolio.StatusApproved && p.Contains(c.InvestmentDate) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvestmentDate.Equal(out[j].InvestmentDate) {
			return out[i].InvestmentDate.Before(out[j].InvestmentDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) DeleteRejectedBefore(_ context.Context, cutoff time.Time) (int, error) {
	defer m.lock()()
	n := 0
	for id, c := range m.st.customers {
		if c.Status == portfolio.StatusRejected && c.UpdatedAt.Before(cutoff) {
			delete(m.st.customers, id)
			n++
		}
	}
	for id, c := range m.st.rdCustomers {
		if c.Status == portfolio.StatusRejected && c.UpdatedAt.Before(cutoff) {
			delete(m.st.rdCustomers, id)
			n++
		}
	}
	return n, nil
}

func (m *Store) SaveRDCustomer(_ context.Context, c portfolio.RDCustomer) error {
	defer m.lock()()
	m.st.rdCustomers[c.ID] = c
	return nil
}

func (m *Store) GetRDCustomer(_ context.Context, id generic.CustomerID) (*portfolio.RDCustomer, error) {
	defer m.lock()()
	c, ok := m.st.rdCustomers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// =============================================================================
// PAYOUTS & COMMISSIONS
// =============================================================================

func (m *Store) CountObligations(_ context.Context, customerID generic.CustomerID) (int, error) {
	defer m.lock()()
	n := 0
	for _, o := range m.st.obligations {
		if o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

// InsertObligations checks every key before writing anything.
func (m *Store) InsertObligations(_ context.Context, obs []schedule.Obligation) error {
	defer m.lock()()
	type monthKey struct {
		customer generic.CustomerID
		month    int
	}
	taken := make(map[monthKey]bool, len(m.st.obligations))
	for _, o := range m.st.obligations {
		taken[monthKey{o.CustomerID, o.PayoutMonth}] = true
	}
	for _, o := range obs {
		k := monthKey{o.CustomerID, o.PayoutMonth}
		if _, dup := m.st.obligations[o.ID]; dup || taken[k] {
			return generic.Violation(generic.CodeDuplicateSchedule,
				"payout month %d for customer %s", o.PayoutMonth, o.CustomerID)
		}
		taken[k] = true
	}
	for _, o := range obs {
		o.Method = methodOrNone(o.Method)
		m.st.obligations[o.ID] = o
	}
	return nil
}

func (m *Store) ListObligations(_ context.Context, customerID generic.CustomerID) ([]schedule.Obligation, error) {
	defer m.lock()()
	var out []schedule.Obligation
	for _, o := range m.st.obligations {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayoutMonth < out[j].PayoutMonth })
	return out, nil
}

func (m *Store) GetObligation(_ context.Context, id string) (*schedule.Obligation, error) {
	defer m.lock()()
	o, ok := m.st.obligations[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Store) MarkObligationPaid(_ context.Context, o schedule.Obligation) error {
	defer m.lock()()
	cur, ok := m.st.obligations[o.ID]
	if !ok || cur.Paid {
		return alreadyPaid("obligation", o.ID)
	}
	cur.Paid, cur.PaidAt, cur.Method, cur.Reference = true, o.PaidAt, methodOrNone(o.Method), o.Reference
	m.st.obligations[o.ID] = cur
	return nil
}

func (m *Store) InsertCommissions(_ context.Context, coms []commission.Obligation) error {
	defer m.lock()()
	type sourceKey struct {
		agent  generic.AgentID
		source commission.Source
		ref    string
	}
	taken := make(map[sourceKey]bool, len(m.st.commissions))
	for _, c := range m.st.commissions {
		taken[sourceKey{c.AgentID, c.Source, c.SourceRef}] = true
	}
	for _, c := range coms {
		k := sourceKey{c.AgentID, c.Source, c.SourceRef}
		if _, dup := m.st.commissions[c.ID]; dup || taken[k] {
			return generic.Violation(generic.CodeDuplicateSchedule,
				"commission for agent %s on %s %s", c.AgentID, c.Source, c.SourceRef)
		}
		taken[k] = true
	}
	for _, c := range coms {
		c.Method = methodOrNone(c.Method)
		m.st.commissions[c.ID] = c
	}
	return nil
}

func (m *Store) ListCommissions(_ context.Context, agentID generic.AgentID) ([]commission.Obligation, error) {
	defer m.lock()()
	var out []commission.Obligation
	for _, c := range m.st.commissions {
		if agentID == "" || c.AgentID == agentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.AgentID != b.AgentID {
			return a.AgentID < b.AgentID
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *Store) GetCommission(_ context.Context, id string) (*commission.Obligation, error) {
	defer m.lock()()
	c, ok := m.st.commissions[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Store) MarkCommissionPaid(_ context.Context, c commission.Obligation) error {
	defer m.lock()()
	cur, ok := m.st.commissions[c.ID]
	if !ok || cur.Paid {
		return alreadyPaid("commission", c.ID)
	}
	cur.Paid, cur.PaidAt, cur.Method, cur.Reference = true, c.PaidAt, methodOrNone(c.Method), c.Reference
	m.st.commissions[c.ID] = cur
	return nil
}

// =============================================================================
// RECURRING DEPOSITS
// =============================================================================

func (m *Store) CountInstallments(_ context.Context, customerID generic.CustomerID) (int, error) {
	defer m.lock()()
	n := 0
	for _, i := range m.st.installments {
		if i.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (m *Store) InsertDepositSchedule(_ context.Context, sched deposit.Schedule) error {
	defer m.lock()()
	type seqKey struct {
		customer generic.CustomerID
		seq      int
	}
	taken := make(map[seqKey]bool, len(m.st.installments))
	for _, i := range m.st.installments {
		taken[seqKey{i.CustomerID, i.Seq}] = true
	}
	for _, i := range sched.Installments {
		k := seqKey{i.CustomerID, i.Seq}
		if _, dup := m.st.installments[i.ID]; dup || taken[k] {
			return generic.Violation(generic.CodeDuplicateSchedule,
				"installment %d for customer %s", i.Seq, i.CustomerID)
		}
		taken[k] = true
	}
	if _, dup := m.st.maturities[sched.Maturity.CustomerID]; dup {
		return generic.Violation(generic.CodeDuplicateSchedule, "maturity for customer %s", sched.Maturity.CustomerID)
	}
	for _, i := range sched.Installments {
		i.Method = methodOrNone(i.Method)
		m.st.installments[i.ID] = i
	}
	m.st.maturities[sched.Maturity.CustomerID] = sched.Maturity
	return nil
}

func (m *Store) ListInstallments(_ context.Context, customerID generic.CustomerID) ([]deposit.Installment, error) {
	defer m.lock()()
	var out []deposit.Installment
	for _, i := range m.st.installments {
		if i.CustomerID == customerID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

func (m *Store) GetInstallment(_ context.Context, id string) (*deposit.Installment, error) {
	defer m.lock()()
	i, ok := m.st.installments[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (m *Store) MarkInstallmentPaid(_ context.Context, inst deposit.Installment) error {
	defer m.lock()()
	cur, ok := m.st.installments[inst.ID]
	if !ok || cur.Paid {
		return alreadyPaid("installment", inst.ID)
	}
	cur.Paid, cur.PaidAt, cur.Method, cur.Reference = true, inst.PaidAt, methodOrNone(inst.Method), inst.Reference
	m.st.installments[inst.ID] = cur
	return nil
}

func (m *Store) GetMaturity(_ context.Context, customerID generic.CustomerID) (*deposit.Maturity, error) {
	defer m.lock()()
	mat, ok := m.st.maturities[customerID]
	if !ok {
		return nil, nil
	}
	return &mat, nil
}

func (m *Store) UpdateMaturityAmount(_ context.Context, mat deposit.Maturity) error {
	defer m.lock()()
	for k, cur := range m.st.maturities {
		if cur.ID == mat.ID {
			cur.Amount = mat.Amount
			m.st.maturities[k] = cur
			return nil
		}
	}
	return generic.NotFound("maturity", mat.ID)
}

func (m *Store) PenaltyExists(_ context.Context, installmentID string) (bool, error) {
	defer m.lock()()
	_, ok := m.st.penalties[installmentID]
	return ok, nil
}

func (m *Store) InsertPenalty(_ context.Context, p deposit.Penalty) error {
	defer m.lock()()
	if _, dup := m.st.penalties[p.InstallmentID]; dup {
		return generic.Violation(generic.CodeDuplicatePenalty, "penalty for installment %s", p.InstallmentID)
	}
	m.st.penalties[p.InstallmentID] = p
	return nil
}

// =============================================================================
// GRANTS
// =============================================================================

func (m *Store) ListGrants(_ context.Context, period string) ([]rewards.Grant, error) {
	defer m.lock()()
	var out []rewards.Grant
	for _, g := range m.st.grants {
		if period == "" || g.Period == period {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Period != b.Period:
			return a.Period < b.Period
		case a.Kind != b.Kind:
			return a.Kind < b.Kind
		case a.AgentID != b.AgentID:
			return a.AgentID < b.AgentID
		}
		return a.PlanID < b.PlanID
	})
	return out, nil
}

func (m *Store) InsertGrants(_ context.Context, grants []rewards.Grant) error {
	defer m.lock()()
	issued := make(rewards.Issued, len(m.st.grants))
	for _, g := range m.st.grants {
		issued[g.Key()] = true
	}
	for _, g := range grants {
		if _, dup := m.st.grants[g.ID]; dup || issued[g.Key()] {
			return generic.Violation(generic.CodeDuplicateGrant,
				"%s grant for agent %s in %s", g.Kind, g.AgentID, g.Period)
		}
		issued[g.Key()] = true
	}
	for _, g := range grants {
		m.st.grants[g.ID] = g
	}
	return nil
}

func (m *Store) GetGrant(_ context.Context, id string) (*rewards.Grant, error) {
	defer m.lock()()
	g, ok := m.st.grants[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *Store) MarkGrantRewarded(_ context.Context, g rewards.Grant) error {
	defer m.lock()()
	cur, ok := m.st.grants[g.ID]
	if !ok || cur.Rewarded {
		return alreadyPaid("grant", g.ID)
	}
	cur.Rewarded, cur.RewardedAt, cur.Method = true, g.RewardedAt, g.Method
	m.st.grants[g.ID] = cur
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func methodOrNone(m generic.PaymentMethod) generic.PaymentMethod {
	if m == "" {
		return generic.MethodNone
	}
	return m
}

func alreadyPaid(kind, id string) error {
	return generic.Violation(generic.CodeAlreadyPaid, "%s %s already paid or missing", kind, id)
}
