package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/schedule"
)

// =============================================================================
// PAYOUT OBLIGATIONS
// =============================================================================

// CountObligations returns how many payouts a customer already has.
func (s *Store) CountObligations(ctx context.Context, customerID generic.CustomerID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM obligations WHERE customer_id = ?`, string(customerID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count obligations: %w", err)
	}
	return count, nil
}

// InsertObligations stores a generated schedule.
func (s *Store) InsertObligations(ctx context.Context, obs []schedule.Obligation) error {
	query := `
		INSERT INTO obligations
		(id, customer_id, payout_month, due_date, start_date, kind, amount, interest_amount,
		 principal_amount, is_principal, paid, paid_at, method, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, o := range obs {
		_, err := s.q.ExecContext(ctx, query,
			o.ID, string(o.CustomerID), o.PayoutMonth, formatDate(o.DueDate), formatDate(o.StartDate),
			string(o.Kind), o.Amount.String(), o.InterestAmount.String(), o.PrincipalAmount.String(),
			o.IsPrincipal, o.Paid, nullTime(o.PaidAt), string(methodOrNone(o.Method)), o.Reference)
		if err != nil {
			return insertErr(err, generic.CodeDuplicateSchedule,
				fmt.Sprintf("payout month %d for customer %s", o.PayoutMonth, o.CustomerID))
		}
	}
	return nil
}

const obligationColumns = `id, customer_id, payout_month, due_date, start_date, kind, amount, interest_amount,
	principal_amount, is_principal, paid, paid_at, method, reference`

// ListObligations returns a customer's schedule in payout order.
func (s *Store) ListObligations(ctx context.Context, customerID generic.CustomerID) ([]schedule.Obligation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE customer_id = ? ORDER BY payout_month`,
		string(customerID))
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []schedule.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetObligation retrieves one payout by id.
func (s *Store) GetObligation(ctx context.Context, id string) (*schedule.Obligation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkObligationPaid records the paid state of a payout. An already paid
// row is left alone.
func (s *Store) MarkObligationPaid(ctx context.Context, o schedule.Obligation) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE obligations SET paid = 1, paid_at = ?, method = ?, reference = ?
		WHERE id = ? AND paid = 0`,
		nullTime(o.PaidAt), string(methodOrNone(o.Method)), o.Reference, o.ID)
	if err != nil {
		return fmt.Errorf("failed to mark obligation paid: %w", err)
	}
	return expectUnpaid(res, "obligation", o.ID)
}

func scanObligation(sc scanner) (schedule.Obligation, error) {
	var o schedule.Obligation
	var customerID, due, start, kind, method string
	var paidAt sql.NullString
	err := sc.Scan(&o.ID, &customerID, &o.PayoutMonth, &due, &start, &kind, &o.Amount,
		&o.InterestAmount, &o.PrincipalAmount, &o.IsPrincipal, &o.Paid, &paidAt, &method, &o.Reference)
	if err == sql.ErrNoRows {
		return o, err
	}
	if err != nil {
		return o, fmt.Errorf("failed to scan obligation: %w", err)
	}
	o.CustomerID = generic.CustomerID(customerID)
	o.Kind = schedule.Kind(kind)
	o.Method = generic.PaymentMethod(method)
	if o.DueDate, err = parseDate(due); err != nil {
		return o, err
	}
	if o.StartDate, err = parseDate(start); err != nil {
		return o, err
	}
	if o.PaidAt, err = parseNullTime(paidAt); err != nil {
		return o, err
	}
	return o, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// InsertCommissions stores the output of one cascade.
func (s *Store) InsertCommissions(ctx context.Context, coms []commission.Obligation) error {
	query := `
		INSERT INTO commissions
		(id, agent_id, customer_id, source, source_ref, percent, amount, due_date, paid, paid_at, method, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, c := range coms {
		_, err := s.q.ExecContext(ctx, query,
			c.ID, string(c.AgentID), string(c.CustomerID), string(c.Source), c.SourceRef,
			c.Percent.String(), c.Amount.String(), formatDate(c.DueDate),
			c.Paid, nullTime(c.PaidAt), string(methodOrNone(c.Method)), c.Reference)
		if err != nil {
			return insertErr(err, generic.CodeDuplicateSchedule,
				fmt.Sprintf("commission for agent %s on %s %s", c.AgentID, c.Source, c.SourceRef))
		}
	}
	return nil
}

const commissionColumns = `id, agent_id, customer_id, source, source_ref, percent, amount, due_date,
	paid, paid_at, method, reference`

// ListCommissions returns commissions ordered by due date. An empty agent
// id lists every agent's.
func (s *Store) ListCommissions(ctx context.Context, agentID generic.AgentID) ([]commission.Obligation, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, string(agentID))
	}
	query += ` ORDER BY due_date, agent_id, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var out []commission.Obligation
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCommission retrieves one commission by id.
func (s *Store) GetCommission(ctx context.Context, id string) (*commission.Obligation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = ?`, id)
	c, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCommissionPaid records the paid state of a commission.
func (s *Store) MarkCommissionPaid(ctx context.Context, c commission.Obligation) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE commissions SET paid = 1, paid_at = ?, method = ?, reference = ?
		WHERE id = ? AND paid = 0`,
		nullTime(c.PaidAt), string(methodOrNone(c.Method)), c.Reference, c.ID)
	if err != nil {
		return fmt.Errorf("failed to mark commission paid: %w", err)
	}
	return expectUnpaid(res, "commission", c.ID)
}

func scanCommission(sc scanner) (commission.Obligation, error) {
	var c commission.Obligation
	var agentID, customerID, source, due, method string
	var paidAt sql.NullString
	err := sc.Scan(&c.ID, &agentID, &customerID, &source, &c.SourceRef, &c.Percent, &c.Amount,
		&due, &c.Paid, &paidAt, &method, &c.Reference)
	if err == sql.ErrNoRows {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("failed to scan commission: %w", err)
	}
	c.AgentID = generic.AgentID(agentID)
	c.CustomerID = generic.CustomerID(customerID)
	c.Source = commission.Source(source)
	c.Method = generic.PaymentMethod(method)
	if c.DueDate, err = parseDate(due); err != nil {
		return c, err
	}
	if c.PaidAt, err = parseNullTime(paidAt); err != nil {
		return c, err
	}
	return c, nil
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

// expectUnpaid reports a zero-row paid-guarded UPDATE as already_paid.
func expectUnpaid(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.Violation(generic.CodeAlreadyPaid, "%s %s already paid or missing", kind, id)
	}
	return nil
}
