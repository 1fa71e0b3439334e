package commission

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// Source identifies what kind of money movement triggered a cascade.
type Source string

const (
	SourceInvestment    Source = "investment"
	SourceRDInstallment Source = "rd_installment"
)

// Trigger is the money movement a cascade distributes commission on.
type Trigger struct {
	AgentID    generic.AgentID
	CustomerID generic.CustomerID
	Amount     decimal.Decimal
	PayoutDate generic.TimePoint
	Source     Source
	// SourceRef is the investment or installment id. Together with AgentID
	// it keys at most one commission row.
	SourceRef string
}

// Obligation is a commission payable to one agent. ID is empty until persisted.
type Obligation struct {
	ID         string
	AgentID    generic.AgentID
	CustomerID generic.CustomerID
	Source     Source
	SourceRef  string
	Percent    decimal.Decimal
	Amount     decimal.Decimal
	DueDate    generic.TimePoint

	Paid      bool
	PaidAt    *time.Time
	Method    generic.PaymentMethod
	Reference string
}

// Cascade walks from the trigger's agent to the root and emits one
// obligation per approved agent whose percentage exceeds that of the agent
// directly below it. Each visited agent becomes the base for its parent,
// including one that earned nothing.
//
// The walk stops at the first unapproved or unknown agent. An unapproved
// or unknown starting agent yields no obligations and no error. Revisiting
// an agent returns an InvariantViolation and no obligations.
func Cascade(f *Forest, t Trigger) ([]Obligation, error) {
	if !t.Amount.IsPositive() {
		return nil, generic.Invalid("amount", "must be positive")
	}

	var out []Obligation
	visited := make(map[generic.AgentID]bool)
	prev := decimal.Zero

	for id := t.AgentID; id != ""; {
		if visited[id] {
			return nil, generic.Violation(generic.CodeAgentCycle, "agent %s reached twice from %s", id, t.AgentID)
		}
		visited[id] = true

		node, ok := f.Get(id)
		if !ok || !node.Approved {
			break
		}

		diff := node.Percent.Sub(prev)
		if diff.IsPositive() {
			payable := generic.Round2(generic.PercentOf(t.Amount, diff))
			if payable.IsPositive() {
				out = append(out, Obligation{
					AgentID:    node.ID,
					CustomerID: t.CustomerID,
					Source:     t.Source,
					SourceRef:  t.SourceRef,
					Percent:    diff,
					Amount:     payable,
					DueDate:    t.PayoutDate,
				})
			}
		}
		prev = node.Percent
		id = node.ParentID
	}
	return out, nil
}

// MarkPaid records payment of a commission. A commission is paid at most once.
func MarkPaid(o Obligation, at time.Time, method generic.PaymentMethod, reference string) (Obligation, error) {
	if o.Paid {
		return o, generic.Violation(generic.CodeAlreadyPaid, "commission %s already paid", o.ID)
	}
	paidAt := at.UTC()
	o.Paid = true
	o.PaidAt = &paidAt
	o.Method = method
	o.Reference = reference
	return o, nil
}
