package rewards

import (
	"time"

	"github.com/warp/payout-engine/generic"
)

// Expired returns the active plans whose validity ended at or before now,
// already switched inactive. Plans that are inactive or still running are
// left out, so applying the result twice changes nothing.
func Expired(plans []BonusPlan, now time.Time) []BonusPlan {
	at := generic.InstantOf(now)
	var out []BonusPlan
	for _, p := range plans {
		if p.Active && p.Validity.End.BeforeOrEqual(at) {
			p.Active = false
			out = append(out, p)
		}
	}
	return out
}

// Fulfil marks a grant rewarded. A grant is fulfilled at most once.
func Fulfil(g Grant, at time.Time, method generic.PaymentMethod) (Grant, error) {
	if g.Rewarded {
		return g, generic.Violation(generic.CodeAlreadyPaid, "grant %s already rewarded", g.ID)
	}
	rewardedAt := at.UTC()
	g.Rewarded = true
	g.RewardedAt = &rewardedAt
	g.Method = method
	return g, nil
}
