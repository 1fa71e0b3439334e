package deposit_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s got %s", want, got.String())
}

func account(start generic.TimePoint) deposit.Account {
	return deposit.Account{
		CustomerID: "rd-1",
		AgentID:    "agent-a",
		Plan: deposit.Plan{
			ID:             "rd-12",
			DurationMonths: 12,
			ReturnPercent:  decimal.NewNullDecimal(money("10")),
		},
		InstallmentAmount: money("5000"),
		StartDate:         start,
	}
}

func generate(t *testing.T, e *deposit.Engine) deposit.Schedule {
	t.Helper()
	s, err := e.Generate(account(generic.NewTimePoint(2024, 2, 10)), 0)
	require.NoError(t, err)
	for i := range s.Installments {
		s.Installments[i].ID = "inst-" + string(rune('a'+i))
	}
	s.Maturity.ID = "mat-1"
	return s
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_InstallmentsAndMaturity(t *testing.T) {
	// GIVEN: 5,000 a month for 12 months at 10%, started 2024-02-10
	e := deposit.NewEngine(decimal.Zero)

	// WHEN: generating
	s := generate(t, e)

	// THEN: 12 installments from 2024-03-15, maturity of 66,000 in month 13
	require.Len(t, s.Installments, 12)
	assert.Equal(t, "2024-03-15", s.Installments[0].DueDate.String())
	assert.Equal(t, "2025-02-15", s.Installments[11].DueDate.String())
	for i, inst := range s.Installments {
		assert.Equal(t, i+1, inst.Seq)
		assertMoney(t, "5000", inst.Amount)
		assert.False(t, inst.Paid)
	}
	assert.Equal(t, "2025-03-15", s.Maturity.DueDate.String())
	assertMoney(t, "66000", s.Maturity.Amount)
}

func TestGenerate_MonthEndConventionForLateStart(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)

	s, err := e.Generate(account(generic.NewTimePoint(2024, 1, 20)), 0)
	require.NoError(t, err)

	assert.Equal(t, "2024-02-29", s.Installments[0].DueDate.String())
	assert.Equal(t, "2024-03-30", s.Installments[1].DueDate.String())
}

func TestGenerate_RejectsSecondSchedule(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)

	_, err := e.Generate(account(generic.NewTimePoint(2024, 2, 10)), 12)

	code, ok := generic.ViolationCode(err)
	require.True(t, ok)
	assert.Equal(t, generic.CodeDuplicateSchedule, code)
}

func TestGenerate_Validation(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)

	acc := account(generic.NewTimePoint(2024, 2, 10))
	acc.Plan.DurationMonths = 0
	_, err := e.Generate(acc, 0)
	assert.True(t, generic.IsClientError(err))

	acc = account(generic.NewTimePoint(2024, 2, 10))
	acc.InstallmentAmount = money("-5")
	_, err = e.Generate(acc, 0)
	assert.True(t, generic.IsClientError(err))

	acc = account(generic.NewTimePoint(2024, 2, 10))
	acc.Plan.ReturnPercent = decimal.NullDecimal{}
	_, err = e.Generate(acc, 0)
	assert.True(t, generic.IsClientError(err))
}

func TestMaturityAmount_Rounds(t *testing.T) {
	assertMoney(t, "3763.32", deposit.MaturityAmount(money("333.33"), 11, money("2.637")))
}

// =============================================================================
// PAYMENT
// =============================================================================

func TestPay_LatePaymentPenalizesOnce(t *testing.T) {
	// GIVEN: installment 1 of 5,000 due 2024-03-15 and an outstanding 66,000 maturity
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)
	inst := s.Installments[0]

	// WHEN: paid on 2024-03-20
	res, err := e.Pay(deposit.Payment{
		Installment: inst,
		PaidAt:      time.Date(2024, 3, 20, 11, 0, 0, 0, time.UTC),
		Method:      generic.MethodOnline,
		Reference:   "UTR-77",
		Maturity:    &s.Maturity,
	})
	require.NoError(t, err)

	// THEN: one 1,000 penalty for 2024-03 and the maturity drops to 65,000
	require.NotNil(t, res.Penalty)
	assertMoney(t, "1000", res.Penalty.Amount)
	assert.Equal(t, "2024-03", res.Penalty.Month)
	assert.Equal(t, inst.ID, res.Penalty.InstallmentID)
	assert.Equal(t, deposit.PenaltyReason, res.Penalty.Reason)
	require.NotNil(t, res.Maturity)
	assertMoney(t, "65000", res.Maturity.Amount)
	assertMoney(t, "1000", res.Deduction)
	assertMoney(t, "66000", s.Maturity.Amount)
	assert.True(t, res.Installment.Paid)
	assert.Equal(t, "UTR-77", res.Installment.Reference)

	// AND: paying the same installment again is refused
	_, err = e.Pay(deposit.Payment{
		Installment:   res.Installment,
		PaidAt:        time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC),
		PenaltyExists: true,
		Maturity:      res.Maturity,
	})
	code, ok := generic.ViolationCode(err)
	require.True(t, ok)
	assert.Equal(t, generic.CodeAlreadyPaid, code)
}

func TestPay_OnDueDateIsNotLate(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)

	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC),
		Maturity:    &s.Maturity,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Penalty)
	assert.Nil(t, res.Maturity)
	assertMoney(t, "0", res.Deduction)
}

func TestPay_DeductionFlooredAtZero(t *testing.T) {
	e := deposit.NewEngine(money("1000"))
	s := generate(t, e)
	s.Maturity.Amount = money("400")

	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Maturity:    &s.Maturity,
	})
	require.NoError(t, err)

	assertMoney(t, "400", res.Deduction)
	assertMoney(t, "0", res.Maturity.Amount)
	assertMoney(t, "1000", res.Penalty.Amount)
}

func TestPay_LateWithoutOutstandingMaturity(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)
	s.Maturity.Paid = true

	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Maturity:    &s.Maturity,
	})
	require.NoError(t, err)

	assert.NotNil(t, res.Penalty)
	assert.Nil(t, res.Maturity)
	assertMoney(t, "0", res.Deduction)
}

func TestPay_ExistingPenaltyIsInvariantViolation(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)

	_, err := e.Pay(deposit.Payment{
		Installment:   s.Installments[0],
		PaidAt:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		PenaltyExists: true,
		Maturity:      &s.Maturity,
	})

	code, ok := generic.ViolationCode(err)
	require.True(t, ok)
	assert.Equal(t, generic.CodeDuplicatePenalty, code)
}

func TestPay_CustomPenalty(t *testing.T) {
	e := deposit.NewEngine(money("250"))
	s := generate(t, e)

	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		Maturity:    &s.Maturity,
	})
	require.NoError(t, err)

	assertMoney(t, "65750", res.Maturity.Amount)
}

func TestPay_CascadesCommissionOnInstallmentAmount(t *testing.T) {
	// GIVEN: agent-a (2%) under agent-b (5%)
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)
	agents, err := commission.NewForest([]commission.AgentNode{
		{ID: "agent-b", Percent: money("5"), Approved: true},
		{ID: "agent-a", ParentID: "agent-b", Percent: money("2"), Approved: true},
	})
	require.NoError(t, err)

	// WHEN: installment 2 is paid on time
	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[1],
		PaidAt:      time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
		Maturity:    &s.Maturity,
		Agents:      agents,
		AgentID:     "agent-a",
	})
	require.NoError(t, err)

	// THEN: 100 + 150 on the 5,000 installment, dated on the payment day
	require.Len(t, res.Commissions, 2)
	assertMoney(t, "100", res.Commissions[0].Amount)
	assertMoney(t, "150", res.Commissions[1].Amount)
	assert.Equal(t, commission.SourceRDInstallment, res.Commissions[0].Source)
	assert.Equal(t, s.Installments[1].ID, res.Commissions[0].SourceRef)
	assert.Equal(t, "2024-04-10", res.Commissions[0].DueDate.String())
}

func TestPay_CascadeOverLowerMiddleAgent(t *testing.T) {
	// GIVEN: agent-a (5%) under agent-b (3%) under agent-c (6%)
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)
	agents, err := commission.NewForest([]commission.AgentNode{
		{ID: "agent-c", Percent: money("6"), Approved: true},
		{ID: "agent-b", ParentID: "agent-c", Percent: money("3"), Approved: true},
		{ID: "agent-a", ParentID: "agent-b", Percent: money("5"), Approved: true},
	})
	require.NoError(t, err)

	// WHEN: installment 1 is paid on its due date
	res, err := e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      s.Installments[0].DueDate.Time,
		Maturity:    &s.Maturity,
		Agents:      agents,
		AgentID:     "agent-a",
	})
	require.NoError(t, err)

	// THEN: agent-b earns nothing and agent-c earns 6% - 3% of 5,000
	require.Len(t, res.Commissions, 2)
	assert.Equal(t, generic.AgentID("agent-a"), res.Commissions[0].AgentID)
	assertMoney(t, "250", res.Commissions[0].Amount)
	assert.Equal(t, generic.AgentID("agent-c"), res.Commissions[1].AgentID)
	assertMoney(t, "150", res.Commissions[1].Amount)
}

func TestPay_CycleFailsWholePayment(t *testing.T) {
	e := deposit.NewEngine(decimal.Zero)
	s := generate(t, e)
	agents, err := commission.NewForest([]commission.AgentNode{
		{ID: "agent-a", ParentID: "agent-b", Percent: money("2"), Approved: true},
		{ID: "agent-b", ParentID: "agent-a", Percent: money("5"), Approved: true},
	})
	require.NoError(t, err)

	_, err = e.Pay(deposit.Payment{
		Installment: s.Installments[0],
		PaidAt:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Agents:      agents,
		AgentID:     "agent-a",
	})

	assert.True(t, generic.IsInvariant(err))
}
