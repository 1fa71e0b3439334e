package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// SaveCustomer inserts or replaces an investment record.
func (s *Store) SaveCustomer(ctx context.Context, c portfolio.Customer) error {
	query := `
		INSERT INTO customers
		(id, name, agent_id, plan_id, amount, investment_date, status, approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			agent_id = excluded.agent_id,
			plan_id = excluded.plan_id,
			amount = excluded.amount,
			investment_date = excluded.investment_date,
			status = excluded.status,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		string(c.ID), c.Name, string(c.AgentID), string(c.PlanID),
		c.Amount.String(), formatDate(c.InvestmentDate), string(c.Status),
		nullTime(c.ApprovedAt), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

const customerColumns = `id, name, agent_id, plan_id, amount, investment_date, status, approved_at, created_at, updated_at`

// GetCustomer retrieves an investment by id.
func (s *Store) GetCustomer(ctx context.Context, id generic.CustomerID) (*portfolio.Customer, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, string(id))
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListApprovedInPeriod returns approved investments dated within p.
func (s *Store) ListApprovedInPeriod(ctx context.Context, p generic.Period) ([]portfolio.Customer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE status = ? AND investment_date >= ? AND investment_date < ?
		ORDER BY investment_date, id`,
		string(portfolio.StatusApproved), formatDate(p.Start), formatDate(p.End))
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []portfolio.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteRejectedBefore removes rejected investments and RD accounts last
// updated before cutoff. It returns how many rows went.
func (s *Store) DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for _, table := range []string{"customers", "rd_customers"} {
		res, err := s.q.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE status = ? AND updated_at < ?`,
			string(portfolio.StatusRejected), formatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

func scanCustomer(sc scanner) (portfolio.Customer, error) {
	var c portfolio.Customer
	var id, agentID, planID, date, status, createdAt, updatedAt string
	var approvedAt sql.NullString
	err := sc.Scan(&id, &c.Name, &agentID, &planID, &c.Amount, &date, &status,
		&approvedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.ID = generic.CustomerID(id)
	c.AgentID = generic.AgentID(agentID)
	c.PlanID = generic.PlanID(planID)
	c.Status = portfolio.ApprovalStatus(status)
	if c.InvestmentDate, err = parseDate(date); err != nil {
		return c, err
	}
	if c.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return c, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return c, err
	}
	return c, nil
}

// =============================================================================
// RD CUSTOMERS
// =============================================================================

// SaveRDCustomer inserts or replaces a recurring-deposit account.
func (s *Store) SaveRDCustomer(ctx context.Context, c portfolio.RDCustomer) error {
	query := `
		INSERT INTO rd_customers
		(id, name, agent_id, plan_id, installment_amount, start_date, status, approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			agent_id = excluded.agent_id,
			plan_id = excluded.plan_id,
			installment_amount = excluded.installment_amount,
			start_date = excluded.start_date,
			status = excluded.status,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		string(c.ID), c.Name, string(c.AgentID), string(c.PlanID),
		c.InstallmentAmount.String(), formatDate(c.StartDate), string(c.Status),
		nullTime(c.ApprovedAt), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save rd customer: %w", err)
	}
	return nil
}

// GetRDCustomer retrieves a recurring-deposit account by id.
func (s *Store) GetRDCustomer(ctx context.Context, id generic.CustomerID) (*portfolio.RDCustomer, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, agent_id, plan_id, installment_amount, start_date, status, approved_at, created_at, updated_at
		FROM rd_customers WHERE id = ?`, string(id))

	var c portfolio.RDCustomer
	var cid, agentID, planID, start, status, createdAt, updatedAt string
	var approvedAt sql.NullString
	err := row.Scan(&cid, &c.Name, &agentID, &planID, &c.InstallmentAmount, &start, &status,
		&approvedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rd customer: %w", err)
	}
	c.ID = generic.CustomerID(cid)
	c.AgentID = generic.AgentID(agentID)
	c.PlanID = generic.PlanID(planID)
	c.Status = portfolio.ApprovalStatus(status)
	if c.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if c.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
