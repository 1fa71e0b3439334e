package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// GRANTS
// =============================================================================

const grantColumns = `id, kind, agent_id, plan_id, period, investors, amount, reward_type,
	reward_amount, reward_description, rewarded, rewarded_at, method`

// ListGrants returns grants for a YYYY-MM period, or all when period is empty.
func (s *Store) ListGrants(ctx context.Context, period string) ([]rewards.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants`
	var args []any
	if period != "" {
		query += ` WHERE period = ?`
		args = append(args, period)
	}
	query += ` ORDER BY period, kind, agent_id, plan_id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var out []rewards.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// InsertGrants stores new grants. A grant whose key is already taken fails
// with duplicate_grant.
func (s *Store) InsertGrants(ctx context.Context, grants []rewards.Grant) error {
	query := `
		INSERT INTO grants
		(id, kind, agent_id, plan_id, plan_key, period, investors, amount, reward_type,
		 reward_amount, reward_description, rewarded, rewarded_at, method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, g := range grants {
		key := g.Key()
		_, err := s.q.ExecContext(ctx, query,
			g.ID, string(g.Kind), string(g.AgentID), string(g.PlanID), string(key.PlanID), g.Period,
			g.Investors, g.Amount.String(), string(g.Reward.Type), g.Reward.Amount.String(),
			g.Reward.Description, g.Rewarded, nullTime(g.RewardedAt), string(methodOrNone(g.Method)))
		if err != nil {
			return insertErr(err, generic.CodeDuplicateGrant,
				fmt.Sprintf("%s grant for agent %s in %s", g.Kind, g.AgentID, g.Period))
		}
	}
	return nil
}

// GetGrant retrieves one grant by id.
func (s *Store) GetGrant(ctx context.Context, id string) (*rewards.Grant, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = ?`, id)
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// MarkGrantRewarded records that a grant was handed out.
func (s *Store) MarkGrantRewarded(ctx context.Context, g rewards.Grant) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE grants SET rewarded = 1, rewarded_at = ?, method = ?
		WHERE id = ? AND rewarded = 0`,
		nullTime(g.RewardedAt), string(methodOrNone(g.Method)), g.ID)
	if err != nil {
		return fmt.Errorf("failed to mark grant rewarded: %w", err)
	}
	return expectUnpaid(res, "grant", g.ID)
}

func scanGrant(sc scanner) (rewards.Grant, error) {
	var g rewards.Grant
	var kind, agentID, planID, rewardType, method string
	var rewardedAt sql.NullString
	err := sc.Scan(&g.ID, &kind, &agentID, &planID, &g.Period, &g.Investors, &g.Amount, &rewardType,
		&g.Reward.Amount, &g.Reward.Description, &g.Rewarded, &rewardedAt, &method)
	if err == sql.ErrNoRows {
		return g, err
	}
	if err != nil {
		return g, fmt.Errorf("failed to scan grant: %w", err)
	}
	g.Kind = rewards.GrantKind(kind)
	g.AgentID = generic.AgentID(agentID)
	g.PlanID = generic.PlanID(planID)
	g.Reward.Type = rewards.RewardType(rewardType)
	g.Method = generic.PaymentMethod(method)
	if g.RewardedAt, err = parseNullTime(rewardedAt); err != nil {
		return g, err
	}
	return g, nil
}
