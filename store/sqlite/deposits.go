package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// RD INSTALLMENTS
// =============================================================================

// CountInstallments returns how many installments a customer already has.
func (s *Store) CountInstallments(ctx context.Context, customerID generic.CustomerID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rd_installments WHERE customer_id = ?`, string(customerID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count installments: %w", err)
	}
	return count, nil
}

// InsertDepositSchedule stores the installments and the maturity.
func (s *Store) InsertDepositSchedule(ctx context.Context, sched deposit.Schedule) error {
	query := `
		INSERT INTO rd_installments
		(id, customer_id, seq, due_date, amount, paid, paid_at, method, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, inst := range sched.Installments {
		_, err := s.q.ExecContext(ctx, query,
			inst.ID, string(inst.CustomerID), inst.Seq, formatDate(inst.DueDate), inst.Amount.String(),
			inst.Paid, nullTime(inst.PaidAt), string(methodOrNone(inst.Method)), inst.Reference)
		if err != nil {
			return insertErr(err, generic.CodeDuplicateSchedule,
				fmt.Sprintf("installment %d for customer %s", inst.Seq, inst.CustomerID))
		}
	}

	m := sched.Maturity
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rd_maturities (id, customer_id, due_date, amount, paid, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.CustomerID), formatDate(m.DueDate), m.Amount.String(), m.Paid, nullTime(m.PaidAt))
	if err != nil {
		return insertErr(err, generic.CodeDuplicateSchedule, "maturity for customer "+string(m.CustomerID))
	}
	return nil
}

const installmentColumns = `id, customer_id, seq, due_date, amount, paid, paid_at, method, reference`

// ListInstallments returns a customer's installments in sequence order.
func (s *Store) ListInstallments(ctx context.Context, customerID generic.CustomerID) ([]deposit.Installment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM rd_installments WHERE customer_id = ? ORDER BY seq`,
		string(customerID))
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []deposit.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// GetInstallment retrieves one installment by id.
func (s *Store) GetInstallment(ctx context.Context, id string) (*deposit.Installment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+installmentColumns+` FROM rd_installments WHERE id = ?`, id)
	inst, err := scanInstallment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// MarkInstallmentPaid records the paid state of an installment.
func (s *Store) MarkInstallmentPaid(ctx context.Context, inst deposit.Installment) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE rd_installments SET paid = 1, paid_at = ?, method = ?, reference = ?
		WHERE id = ? AND paid = 0`,
		nullTime(inst.PaidAt), string(methodOrNone(inst.Method)), inst.Reference, inst.ID)
	if err != nil {
		return fmt.Errorf("failed to mark installment paid: %w", err)
	}
	return expectUnpaid(res, "installment", inst.ID)
}

func scanInstallment(sc scanner) (deposit.Installment, error) {
	var inst deposit.Installment
	var customerID, due, method string
	var paidAt sql.NullString
	err := sc.Scan(&inst.ID, &customerID, &inst.Seq, &due, &inst.Amount, &inst.Paid, &paidAt, &method, &inst.Reference)
	if err == sql.ErrNoRows {
		return inst, err
	}
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}
	inst.CustomerID = generic.CustomerID(customerID)
	inst.Method = generic.PaymentMethod(method)
	if inst.DueDate, err = parseDate(due); err != nil {
		return inst, err
	}
	if inst.PaidAt, err = parseNullTime(paidAt); err != nil {
		return inst, err
	}
	return inst, nil
}

// =============================================================================
// MATURITIES & PENALTIES
// =============================================================================

// GetMaturity retrieves a customer's maturity, nil if none was generated.
func (s *Store) GetMaturity(ctx context.Context, customerID generic.CustomerID) (*deposit.Maturity, error) {
	var m deposit.Maturity
	var cid, due string
	var paidAt sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, customer_id, due_date, amount, paid, paid_at
		FROM rd_maturities WHERE customer_id = ?`, string(customerID),
	).Scan(&m.ID, &cid, &due, &m.Amount, &m.Paid, &paidAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maturity: %w", err)
	}
	m.CustomerID = generic.CustomerID(cid)
	if m.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if m.PaidAt, err = parseNullTime(paidAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMaturityAmount writes a deducted maturity amount.
func (s *Store) UpdateMaturityAmount(ctx context.Context, m deposit.Maturity) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE rd_maturities SET amount = ? WHERE id = ?`, m.Amount.String(), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update maturity: %w", err)
	}
	return expectOne(res, "maturity", m.ID)
}

// PenaltyExists reports whether an installment was already penalized.
func (s *Store) PenaltyExists(ctx context.Context, installmentID string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rd_penalties WHERE installment_id = ?`, installmentID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check penalty: %w", err)
	}
	return count > 0, nil
}

// InsertPenalty records a late-payment penalty.
func (s *Store) InsertPenalty(ctx context.Context, p deposit.Penalty) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rd_penalties (id, customer_id, installment_id, amount, month, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.CustomerID), p.InstallmentID, p.Amount.String(), p.Month, p.Reason, formatTime(p.CreatedAt))
	if err != nil {
		return insertErr(err, generic.CodeDuplicatePenalty, "penalty for installment "+p.InstallmentID)
	}
	return nil
}
