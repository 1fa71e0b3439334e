/*
Package commission distributes differential commissions up the agent hierarchy.

PURPOSE:
  Agents form a forest: each agent has at most one parent and a commission
  percentage. When money enters the system under an agent, every approved
  ancestor earns the difference between its own percentage and that of the
  agent directly below it, or nothing when its own is not higher.

KEY CONCEPTS:
  - AgentNode: id, parent id, percentage, approval flag
  - Forest: arena of nodes plus an id index, built once per operation
  - Cascade: the upward walk that emits CommissionObligations

INVARIANTS:
  - On a chain whose percentages rise towards the root, the payables sum to
    amount * root percentage / 100
  - No agent is emitted twice for one trigger
  - A cycle in the parent chain is an InvariantViolation, never a hang

EXAMPLE:
  A (3%) -> B (6%) -> C (10%), 100,000 under A:
    A earns 3,000, B earns 3,000, C earns 4,000

SEE ALSO:
  - cascade.go: the walk itself
  - deposit/: triggers a cascade per paid installment
*/
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// AgentNode is one agent in the hierarchy. ParentID is empty for roots.
type AgentNode struct {
	ID       generic.AgentID
	Name     string
	ParentID generic.AgentID
	Percent  decimal.Decimal
	Approved bool
}

// Forest indexes agents by id. Parent links are resolved lazily, so a
// dangling ParentID simply ends the chain.
type Forest struct {
	nodes []AgentNode
	index map[generic.AgentID]int
}

// NewForest builds the arena. Duplicate ids and percentages outside
// [0, 100] are rejected.
func NewForest(nodes []AgentNode) (*Forest, error) {
	f := &Forest{
		nodes: make([]AgentNode, 0, len(nodes)),
		index: make(map[generic.AgentID]int, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, generic.Invalid("agent_id", "is required")
		}
		if _, dup := f.index[n.ID]; dup {
			return nil, generic.Invalid("agent_id", fmt.Sprintf("duplicate agent %s", n.ID))
		}
		if n.Percent.IsNegative() || n.Percent.GreaterThan(generic.Hundred) {
			return nil, generic.Invalid("commission_percentage", fmt.Sprintf("agent %s: must be in [0, 100]", n.ID))
		}
		f.index[n.ID] = len(f.nodes)
		f.nodes = append(f.nodes, n)
	}
	return f, nil
}

// Get returns the agent with the given id.
func (f *Forest) Get(id generic.AgentID) (AgentNode, bool) {
	i, ok := f.index[id]
	if !ok {
		return AgentNode{}, false
	}
	return f.nodes[i], true
}

// Len returns the number of agents.
func (f *Forest) Len() int { return len(f.nodes) }
