/*
Package sqlite provides a SQLite-backed implementation of portfolio.TxStore.

PURPOSE:
  Persists agents, plans, customers and every record the payout engines
  produce. In production the same schema runs on PostgreSQL with minor
  dialect changes.

KEY TABLES:
  agents:           Agent hierarchy (parent link + percentage)
  plans:            Plan definitions of every kind, stored as JSON
  customers:        Investments awaiting or past approval
  rd_customers:     Recurring-deposit accounts
  obligations:      Customer payout schedule
  commissions:      Agent commission payables
  rd_installments:  Monthly deposits owed by RD customers
  rd_maturities:    Lump sum owed at the end of an RD term
  rd_penalties:     Late-installment penalties
  grants:           Gift and bonus grants

AT-MOST-ONCE:
  Unique indexes back the engine guarantees, so a concurrent duplicate that
  slipped past a precondition check still fails on insert:
  - idx_obligations_unique:  one payout per (customer, month)
  - idx_installments_unique: one installment per (customer, seq)
  - idx_penalties_unique:    one penalty per installment
  - idx_commissions_unique:  one commission per (agent, source, ref)
  - idx_grants_unique:       one grant per (kind, agent, plan key, period)
  A unique failure is returned as a generic.InvariantViolation.

MONEY & DATES:
  Decimals are stored as TEXT and read back through decimal's Scanner, so
  no amount ever passes through float64. Dates are YYYY-MM-DD, instants
  RFC3339 in UTC; both sort lexically.

WAL MODE:
  SQLite is opened with WAL and a single connection. Each transaction holds
  that connection, so statements inside WithTx must go through the Store
  passed to fn.

USAGE:
  store, err := sqlite.New("./data/payout.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := portfolio.NewService(store, logger)

SEE ALSO:
  - portfolio/store.go: Interface definitions
  - portfolio/service.go: The service using this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
)

const timeLayout = time.RFC3339

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Store implements portfolio.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier
}

var _ portfolio.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Agents
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		percent TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0
	);

	-- Plans (all four catalogs)
	CREATE TABLE IF NOT EXISTS plans (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	-- Investments
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		plan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		investment_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path for the monthly tick
	CREATE INDEX IF NOT EXISTS idx_customers_status_date
		ON customers(status, investment_date);

	-- Recurring deposits
	CREATE TABLE IF NOT EXISTS rd_customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		plan_id TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payout schedule
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		payout_month INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		start_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_amount TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		is_principal INTEGER NOT NULL DEFAULT 0,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		method TEXT NOT NULL DEFAULT 'None',
		reference TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_obligations_unique
		ON obligations(customer_id, payout_month);

	-- Commission payables
	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		source TEXT NOT NULL,
		source_ref TEXT NOT NULL,
		percent TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		method TEXT NOT NULL DEFAULT 'None',
		reference TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_commissions_unique
		ON commissions(agent_id, source, source_ref);
	CREATE INDEX IF NOT EXISTS idx_commissions_agent
		ON commissions(agent_id, due_date);

	-- RD installments
	CREATE TABLE IF NOT EXISTS rd_installments (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		method TEXT NOT NULL DEFAULT 'None',
		reference TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_unique
		ON rd_installments(customer_id, seq);

	-- RD maturities
	CREATE TABLE IF NOT EXISTS rd_maturities (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL UNIQUE,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT
	);

	-- RD penalties
	CREATE TABLE IF NOT EXISTS rd_penalties (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		installment_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		month TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_penalties_unique
		ON rd_penalties(installment_id);

	-- Gift and bonus grants
	CREATE TABLE IF NOT EXISTS grants (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		plan_key TEXT NOT NULL,
		period TEXT NOT NULL,
		investors INTEGER NOT NULL,
		amount TEXT NOT NULL,
		reward_type TEXT NOT NULL,
		reward_amount TEXT NOT NULL,
		reward_description TEXT NOT NULL DEFAULT '',
		rewarded INTEGER NOT NULL DEFAULT 0,
		rewarded_at TEXT,
		method TEXT NOT NULL DEFAULT 'None'
	);

	-- plan_key is empty for gifts: one gift per agent and month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_unique
		ON grants(kind, agent_id, plan_key, period);
	CREATE INDEX IF NOT EXISTS idx_grants_period
		ON grants(period);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The Store handed to fn
// runs every statement on that transaction.
func (s *Store) WithTx(ctx context.Context, fn func(portfolio.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data. Used by the demo scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"grants", "rd_penalties", "rd_maturities", "rd_installments",
		"commissions", "obligations", "rd_customers", "customers", "plans", "agents",
	}
	return s.WithTx(ctx, func(st portfolio.Store) error {
		q := st.(*Store).q
		for _, t := range tables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(tp generic.TimePoint) string {
	return tp.Time.UTC().Format(generic.DateLayout)
}

func parseDate(s string) (generic.TimePoint, error) {
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return tp, nil
}

// isUniqueConstraintError recognises unique failures from the driver and,
// for wrapped or mocked errors, by message.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// insertErr maps a failed insert to an InvariantViolation when a unique
// index rejected it.
func insertErr(err error, code generic.InvariantCode, what string) error {
	if isUniqueConstraintError(err) {
		return generic.Violation(code, "%s already recorded", what)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

// expectOne turns a zero-row UPDATE into a NotFoundError.
func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NotFound(kind, id)
	}
	return nil
}
