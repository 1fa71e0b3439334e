package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
)

// =============================================================================
// AGENTS
// =============================================================================

// SaveAgent inserts or replaces an agent.
func (s *Store) SaveAgent(ctx context.Context, a commission.AgentNode) error {
	query := `
		INSERT INTO agents (id, name, parent_id, percent, approved)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id,
			percent = excluded.percent,
			approved = excluded.approved
	`
	_, err := s.q.ExecContext(ctx, query,
		string(a.ID), a.Name, string(a.ParentID), a.Percent.String(), a.Approved)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

// ListAgents returns every agent ordered by id.
func (s *Store) ListAgents(ctx context.Context) ([]commission.AgentNode, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, parent_id, percent, approved FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []commission.AgentNode
	for rows.Next() {
		var a commission.AgentNode
		var id, parent string
		if err := rows.Scan(&id, &a.Name, &parent, &a.Percent, &a.Approved); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		a.ID = generic.AgentID(id)
		a.ParentID = generic.AgentID(parent)
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan inserts or replaces a plan definition.
func (s *Store) SavePlan(ctx context.Context, p portfolio.PlanRecord) error {
	query := `
		INSERT INTO plans (kind, id, name, config_json, active, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			active = excluded.active,
			position = excluded.position,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		string(p.Kind), p.ID, p.Name, p.ConfigJSON, p.Active, p.Position,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by kind and id.
func (s *Store) GetPlan(ctx context.Context, kind portfolio.PlanKind, id string) (*portfolio.PlanRecord, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT kind, id, name, config_json, active, position, created_at, updated_at
		FROM plans WHERE kind = ? AND id = ?`, string(kind), id)

	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans returns the plans of one kind in catalog order.
func (s *Store) ListPlans(ctx context.Context, kind portfolio.PlanKind) ([]portfolio.PlanRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT kind, id, name, config_json, active, position, created_at, updated_at
		FROM plans WHERE kind = ? ORDER BY position, id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []portfolio.PlanRecord
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// SetPlanActive switches a plan on or off.
func (s *Store) SetPlanActive(ctx context.Context, kind portfolio.PlanKind, id string, active bool) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE plans SET active = ? WHERE kind = ? AND id = ?`, active, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return expectOne(res, "plan", id)
}

func scanPlan(sc scanner) (portfolio.PlanRecord, error) {
	var p portfolio.PlanRecord
	var kind, createdAt, updatedAt string
	err := sc.Scan(&kind, &p.ID, &p.Name, &p.ConfigJSON, &p.Active, &p.Position, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan plan: %w", err)
	}
	p.Kind = portfolio.PlanKind(kind)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return p, err
	}
	return p, nil
}
