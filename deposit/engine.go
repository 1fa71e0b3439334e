package deposit

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// Engine generates RD schedules and applies installment payments.
type Engine struct {
	penalty decimal.Decimal
}

// NewEngine returns an engine charging the given late penalty. A
// non-positive penalty falls back to DefaultPenalty.
func NewEngine(penalty decimal.Decimal) *Engine {
	if !penalty.IsPositive() {
		penalty = DefaultPenalty
	}
	return &Engine{penalty: penalty}
}

// Penalty returns the configured penalty amount.
func (e *Engine) Penalty() decimal.Decimal { return e.penalty }

// =============================================================================
// GENERATION
// =============================================================================

// Generate returns the installments and maturity of an approved account.
// existing is the number of installments already persisted for the customer.
func (e *Engine) Generate(acc Account, existing int) (Schedule, error) {
	if err := validateAccount(acc); err != nil {
		return Schedule{}, err
	}
	if existing > 0 {
		return Schedule{}, generic.Violation(generic.CodeDuplicateSchedule,
			"deposit %s already has %d installments", acc.CustomerID, existing)
	}

	n := acc.Plan.DurationMonths
	conv := payout.ConventionFor(acc.StartDate)
	amount := generic.Round2(acc.InstallmentAmount)

	installments := make([]Installment, 0, n)
	for i := 1; i <= n; i++ {
		installments = append(installments, Installment{
			CustomerID: acc.CustomerID,
			Seq:        i,
			DueDate:    payout.PayoutDate(acc.StartDate, i, conv),
			Amount:     amount,
			Method:     generic.MethodNone,
		})
	}

	return Schedule{
		Installments: installments,
		Maturity: Maturity{
			CustomerID: acc.CustomerID,
			DueDate:    payout.PayoutDate(acc.StartDate, n+1, conv),
			Amount:     MaturityAmount(amount, n, acc.Plan.ReturnPercent.Decimal),
		},
	}, nil
}

// MaturityAmount is round2(installment * months * (1 + rate/100)).
func MaturityAmount(installment decimal.Decimal, months int, rate decimal.Decimal) decimal.Decimal {
	deposited := installment.Mul(decimal.NewFromInt(int64(months)))
	return generic.Round2(deposited.Add(generic.PercentOf(deposited, rate)))
}

func validateAccount(acc Account) error {
	switch {
	case acc.CustomerID == "":
		return generic.Invalid("customer_id", "is required")
	case !acc.InstallmentAmount.IsPositive():
		return generic.Invalid("installment_amount", "must be positive")
	case acc.StartDate.IsZero():
		return generic.Invalid("investment_date", "is required")
	case acc.Plan.DurationMonths <= 0:
		return generic.Invalid("duration_months", "is required and must be positive")
	case !acc.Plan.ReturnPercent.Valid:
		return generic.Invalid("return_percentage", "is required")
	case acc.Plan.ReturnPercent.Decimal.IsNegative():
		return generic.Invalid("return_percentage", "must not be negative")
	}
	return nil
}

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is a mark-paid event on one installment together with the state
// the caller already holds for it.
type Payment struct {
	Installment Installment
	PaidAt      time.Time
	Method      generic.PaymentMethod
	Reference   string

	// PenaltyExists reports whether a penalty is already persisted for the installment.
	PenaltyExists bool
	// Maturity is the customer's outstanding maturity, nil if none.
	Maturity *Maturity

	// Agents and AgentID drive the commission cascade. Either may be empty.
	Agents  *commission.Forest
	AgentID generic.AgentID
}

// PaymentResult is everything the caller must persist, atomically.
type PaymentResult struct {
	Installment Installment
	// Penalty is set when the payment was late.
	Penalty *Penalty
	// Maturity is the adjusted maturity when a deduction was applied.
	Maturity    *Maturity
	Deduction   decimal.Decimal
	Commissions []commission.Obligation
}

// Late reports whether paidAt falls on a calendar day after the due date.
func Late(due generic.TimePoint, paidAt time.Time) bool {
	return generic.DateOf(paidAt).After(due)
}

// Pay applies a mark-paid event. It refuses an installment that is already
// paid, and a late payment for an installment that already has a penalty.
func (e *Engine) Pay(p Payment) (PaymentResult, error) {
	inst := p.Installment
	if inst.Paid {
		return PaymentResult{}, generic.Violation(generic.CodeAlreadyPaid,
			"installment %s (#%d) already paid", inst.ID, inst.Seq)
	}
	if p.PaidAt.IsZero() {
		return PaymentResult{}, generic.Invalid("paid_at", "is required")
	}

	paidAt := p.PaidAt.UTC()
	inst.Paid = true
	inst.PaidAt = &paidAt
	inst.Method = p.Method
	inst.Reference = p.Reference
	res := PaymentResult{Installment: inst, Deduction: decimal.Zero}

	if Late(inst.DueDate, paidAt) {
		if p.PenaltyExists {
			return PaymentResult{}, generic.Violation(generic.CodeDuplicatePenalty,
				"installment %s already penalized", inst.ID)
		}
		res.Penalty = &Penalty{
			CustomerID:    inst.CustomerID,
			InstallmentID: inst.ID,
			Amount:        e.penalty,
			Month:         generic.DateOf(paidAt).MonthKey(),
			Reason:        PenaltyReason,
			CreatedAt:     paidAt,
		}
		if m := p.Maturity; m != nil && !m.Paid {
			adjusted := *m
			res.Deduction = generic.MinMoney(e.penalty, m.Amount)
			adjusted.Amount = m.Amount.Sub(res.Deduction)
			res.Maturity = &adjusted
		}
	}

	if p.Agents != nil && p.AgentID != "" {
		coms, err := commission.Cascade(p.Agents, commission.Trigger{
			AgentID:    p.AgentID,
			CustomerID: inst.CustomerID,
			Amount:     inst.Amount,
			PayoutDate: generic.DateOf(paidAt),
			Source:     commission.SourceRDInstallment,
			SourceRef:  inst.ID,
		})
		if err != nil {
			return PaymentResult{}, err
		}
		res.Commissions = coms
	}
	return res, nil
}
