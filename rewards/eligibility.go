package rewards

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// Aggregate sums approved investments dated inside p per agent. Investments
// without an agent are ignored. The result is ordered by agent id.
func Aggregate(invs []Investment, p generic.Period) []Activity {
	byAgent := make(map[generic.AgentID]*Activity)
	for _, inv := range invs {
		if !inv.Approved || inv.AgentID == "" || !p.Contains(inv.Date) {
			continue
		}
		a, ok := byAgent[inv.AgentID]
		if !ok {
			a = &Activity{AgentID: inv.AgentID, Amount: decimal.Zero}
			byAgent[inv.AgentID] = a
		}
		a.Investors++
		a.Amount = a.Amount.Add(inv.Amount)
	}

	out := make([]Activity, 0, len(byAgent))
	for _, a := range byAgent {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Gifts evaluates the single-grant gift catalog: per agent, the first active
// plan in catalog order whose target amount was reached.
func Gifts(activity []Activity, catalog []GiftPlan, p generic.Period, issued Issued) []Grant {
	var out []Grant
	for _, a := range activity {
		if a.Investors == 0 {
			continue
		}
		g := Grant{Kind: KindGift, AgentID: a.AgentID, Period: p.Key()}
		if issued[g.Key()] {
			continue
		}
		for _, plan := range catalog {
			if !plan.Active || a.Amount.LessThan(plan.Targets.Amount) {
				continue
			}
			g.PlanID = plan.ID
			g.Investors = a.Investors
			g.Amount = a.Amount
			g.Reward = plan.Reward
			g.Method = generic.MethodNone
			out = append(out, g)
			break
		}
	}
	return out
}

// Bonuses evaluates every active bonus plan overlapping p independently.
// An agent qualifies on investor count OR amount.
func Bonuses(activity []Activity, plans []BonusPlan, p generic.Period, issued Issued) []Grant {
	var out []Grant
	for _, plan := range plans {
		if !plan.Active || !plan.Validity.Overlaps(p) {
			continue
		}
		for _, a := range activity {
			if a.Investors == 0 || !qualifies(a, plan.Targets) {
				continue
			}
			g := Grant{
				Kind:      KindBonus,
				AgentID:   a.AgentID,
				PlanID:    plan.ID,
				Period:    p.Key(),
				Investors: a.Investors,
				Amount:    a.Amount,
				Reward:    plan.Reward,
				Method:    generic.MethodNone,
			}
			if issued[g.Key()] {
				continue
			}
			out = append(out, g)
		}
	}
	return out
}

func qualifies(a Activity, t Targets) bool {
	return a.Investors >= t.Investors || a.Amount.GreaterThanOrEqual(t.Amount)
}

// Catalog is everything a tick evaluates against.
type Catalog struct {
	Gifts   []GiftPlan
	Bonuses []BonusPlan
}

// Tick runs both evaluations for period p. Given the grants it returned
// folded into issued, a second Tick over the same period returns nothing.
func Tick(invs []Investment, c Catalog, p generic.Period, issued Issued) []Grant {
	activity := Aggregate(invs, p)
	grants := Gifts(activity, c.Gifts, p, issued)
	return append(grants, Bonuses(activity, c.Bonuses, p, issued)...)
}

// ForAgent narrows activity to one agent, for evaluation on a single approval.
func ForAgent(activity []Activity, id generic.AgentID) []Activity {
	for _, a := range activity {
		if a.AgentID == id {
			return []Activity{a}
		}
	}
	return nil
}
