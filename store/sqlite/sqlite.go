/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for the credit ledger, generated self-invoices,
  the notified rule registry and reconciliation run records. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store:             Append-only credit ledger entries
  selfinvoice.InvoiceStore: Self-invoices + per-fiscal-year sequences

APPEND-ONLY ENFORCEMENT:
  The ledger table takes no UPDATE and no DELETE. Corrections are
  reversal or adjustment entries.

KEY TABLES:
  credit_ledger_entries: Immutable ledger, unique idempotency key
  self_invoices:         One per source transaction (unique) - this is
                         what makes generation idempotent under retries
  invoice_sequences:     Monotonic counter per issuer per fiscal year
  notified_rules:        Load-time source for the rule registry
  reconciliation_runs:   Per-period run summaries for audit

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time.

USAGE:
  store, err := sqlite.New("./data/rcm.db")
  if err != nil { ... }
  defer store.Close()
  led := ledger.New(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/recon"
	"github.com/warp/rcm-engine/rules"
	"github.com/warp/rcm-engine/selfinvoice"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Credit ledger (append-only)
	CREATE TABLE IF NOT EXISTS credit_ledger_entries (
		id TEXT PRIMARY KEY,
		gstin TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		igst TEXT NOT NULL,
		cgst TEXT NOT NULL,
		sgst TEXT NOT NULL,
		status TEXT,
		reference TEXT,
		idempotency_key TEXT UNIQUE,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_gstin_date
		ON credit_ledger_entries(gstin, entry_date);
	CREATE INDEX IF NOT EXISTS idx_ledger_reference
		ON credit_ledger_entries(reference) WHERE reference IS NOT NULL;

	-- Self-invoices: one per source transaction, enforced here so a
	-- retried batch job cannot double-issue
	CREATE TABLE IF NOT EXISTS self_invoices (
		number TEXT PRIMARY KEY,
		source_transaction_id TEXT NOT NULL UNIQUE,
		issue_date TEXT NOT NULL,
		recipient_gstin TEXT NOT NULL,
		supplier_name TEXT,
		supplier_gstin TEXT,
		supplier_state_code TEXT,
		hsn_sac_code TEXT,
		rule_id TEXT,
		taxable_value TEXT NOT NULL,
		gst_rate TEXT NOT NULL,
		igst TEXT NOT NULL,
		cgst TEXT NOT NULL,
		sgst TEXT NOT NULL,
		cess TEXT NOT NULL,
		total_value TEXT NOT NULL,
		issued_within_time BOOLEAN NOT NULL,
		days_delayed INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_self_invoices_recipient
		ON self_invoices(recipient_gstin);

	-- Sequence counter per issuer per fiscal year
	CREATE TABLE IF NOT EXISTS invoice_sequences (
		gstin TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL,
		next_seq INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (gstin, fiscal_year)
	);

	-- Notified rule registry (load-time source)
	CREATE TABLE IF NOT EXISTS notified_rules (
		id TEXT PRIMARY KEY,
		rule_type TEXT NOT NULL,
		code_prefixes TEXT NOT NULL,
		description TEXT,
		gst_rate TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Reconciliation run summaries (audit)
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		gstin TEXT NOT NULL,
		period TEXT NOT NULL,
		matched INTEGER NOT NULL,
		mismatched INTEGER NOT NULL,
		claim_only INTEGER NOT NULL,
		statement_only INTEGER NOT NULL,
		violations INTEGER NOT NULL,
		manual_entry INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recon_runs_gstin_period
		ON reconciliation_runs(gstin, period);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// AppendEntry adds one ledger entry.
func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO credit_ledger_entries
		(id, gstin, entry_date, entry_type, igst, cgst, sgst, status, reference,
		 idempotency_key, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.GSTIN,
		e.Date.UTC().Format(time.RFC3339),
		string(e.Type),
		e.Amount.IGST.String(),
		e.Amount.CGST.String(),
		e.Amount.SGST.String(),
		nullString(string(e.Status)),
		nullString(e.Reference),
		nullString(e.IdempotencyKey),
		nullString(e.Reason),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return gst.ErrDuplicateReference
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// LoadEntries returns all entries for an issuer, chronologically.
func (s *Store) LoadEntries(ctx context.Context, gstin string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, gstin, entry_date, entry_type, igst, cgst, sgst, status,
		       reference, idempotency_key, reason, created_at
		FROM credit_ledger_entries
		WHERE gstin = ?
		ORDER BY entry_date ASC, created_at ASC
	`
	return s.queryEntries(ctx, query, gstin)
}

// LoadEntriesRange returns entries dated within [from, to].
func (s *Store) LoadEntriesRange(ctx context.Context, gstin string, from, to time.Time) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, gstin, entry_date, entry_type, igst, cgst, sgst, status,
		       reference, idempotency_key, reason, created_at
		FROM credit_ledger_entries
		WHERE gstin = ? AND entry_date >= ? AND entry_date <= ?
		ORDER BY entry_date ASC, created_at ASC
	`
	return s.queryEntries(ctx, query, gstin,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

// EntryExists checks whether an idempotency key has been used.
func (s *Store) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM credit_ledger_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e                ledger.Entry
		entryDate        string
		igst, cgst, sgst string
		status           sql.NullString
		reference        sql.NullString
		idempotencyKey   sql.NullString
		reason           sql.NullString
		createdAt        string
	)
	err := rows.Scan(&e.ID, &e.GSTIN, &entryDate, &e.Type, &igst, &cgst, &sgst,
		&status, &reference, &idempotencyKey, &reason, &createdAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	e.Date, _ = time.Parse(time.RFC3339, entryDate)
	e.Amount = gst.TaxAmount{
		IGST: parseDecimal(igst),
		CGST: parseDecimal(cgst),
		SGST: parseDecimal(sgst),
	}
	e.Status = ledger.EntryStatus(status.String)
	e.Reference = reference.String
	e.IdempotencyKey = idempotencyKey.String
	e.Reason = reason.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// INVOICE STORE (selfinvoice.InvoiceStore interface)
// =============================================================================

// SaveInvoice persists a self-invoice. The unique constraint on the
// source transaction makes generation idempotent.
func (s *Store) SaveInvoice(ctx context.Context, inv selfinvoice.SelfInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO self_invoices
		(number, source_transaction_id, issue_date, recipient_gstin, supplier_name,
		 supplier_gstin, supplier_state_code, hsn_sac_code, rule_id, taxable_value,
		 gst_rate, igst, cgst, sgst, cess, total_value, issued_within_time,
		 days_delayed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		inv.Number,
		inv.SourceTransactionID,
		inv.IssueDate.UTC().Format(time.RFC3339),
		inv.RecipientGSTIN,
		inv.SupplierName,
		inv.SupplierGSTIN,
		inv.SupplierStateCode,
		inv.HSNSACCode,
		inv.RuleID,
		inv.TaxableValue.String(),
		inv.GSTRate.String(),
		inv.Tax.IGST.String(),
		inv.Tax.CGST.String(),
		inv.Tax.SGST.String(),
		inv.Cess.String(),
		inv.TotalValue.String(),
		inv.IssuedWithinTime,
		inv.DaysDelayed,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return gst.ErrDuplicateReference
		}
		return fmt.Errorf("failed to save self-invoice: %w", err)
	}
	return nil
}

// InvoiceBySource returns the invoice generated for a source transaction.
func (s *Store) InvoiceBySource(ctx context.Context, sourceTransactionID string) (*selfinvoice.SelfInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT number, source_transaction_id, issue_date, recipient_gstin,
		       supplier_name, supplier_gstin, supplier_state_code, hsn_sac_code,
		       rule_id, taxable_value, gst_rate, igst, cgst, sgst, cess,
		       total_value, issued_within_time, days_delayed
		FROM self_invoices
		WHERE source_transaction_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, sourceTransactionID)

	var (
		inv                          selfinvoice.SelfInvoice
		issueDate                    string
		taxable, rate                string
		igst, cgst, sgst, cess, tot  string
	)
	err := row.Scan(&inv.Number, &inv.SourceTransactionID, &issueDate,
		&inv.RecipientGSTIN, &inv.SupplierName, &inv.SupplierGSTIN,
		&inv.SupplierStateCode, &inv.HSNSACCode, &inv.RuleID,
		&taxable, &rate, &igst, &cgst, &sgst, &cess, &tot,
		&inv.IssuedWithinTime, &inv.DaysDelayed)
	if err == sql.ErrNoRows {
		return nil, gst.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load self-invoice: %w", err)
	}

	inv.IssueDate, _ = time.Parse(time.RFC3339, issueDate)
	inv.TaxableValue = parseDecimal(taxable)
	inv.GSTRate = parseDecimal(rate)
	inv.Tax = gst.TaxAmount{IGST: parseDecimal(igst), CGST: parseDecimal(cgst), SGST: parseDecimal(sgst)}
	inv.Cess = parseDecimal(cess)
	inv.TotalValue = parseDecimal(tot)
	return &inv, nil
}

// NextSequence atomically increments and returns the counter for an
// issuer and fiscal year.
func (s *Store) NextSequence(ctx context.Context, gstin string, fy gst.FiscalYear) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_sequences (gstin, fiscal_year, next_seq)
		VALUES (?, ?, 1)
		ON CONFLICT(gstin, fiscal_year) DO UPDATE SET next_seq = next_seq + 1
	`, gstin, int(fy))
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		"SELECT next_seq FROM invoice_sequences WHERE gstin = ? AND fiscal_year = ?",
		gstin, int(fy),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	return seq, tx.Commit()
}

// =============================================================================
// RULE REGISTRY SOURCE
// =============================================================================

// LoadRules reads the notified rule set. Prefixes are stored
// comma-separated; the registry re-validates on construction.
func (s *Store) LoadRules(ctx context.Context) ([]rules.NotifiedRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_type, code_prefixes, description, gst_rate,
		       effective_from, effective_to, priority, is_active
		FROM notified_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []rules.NotifiedRule
	for rows.Next() {
		var (
			r             rules.NotifiedRule
			prefixes      string
			rate          string
			effectiveFrom string
			effectiveTo   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Type, &prefixes, &r.Description, &rate,
			&effectiveFrom, &effectiveTo, &r.Priority, &r.Active); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.CodePrefixes = strings.Split(prefixes, ",")
		r.GSTRate = parseDecimal(rate)
		r.EffectiveFrom, _ = time.Parse(time.RFC3339, effectiveFrom)
		if effectiveTo.Valid {
			t, _ := time.Parse(time.RFC3339, effectiveTo.String)
			r.EffectiveTo = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeedRules inserts rules if the table is empty. Used on first start.
func (s *Store) SeedRules(ctx context.Context, ruleSet []rules.NotifiedRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notified_rules").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range ruleSet {
		var effectiveTo any
		if r.EffectiveTo != nil {
			effectiveTo = r.EffectiveTo.UTC().Format(time.RFC3339)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notified_rules
			(id, rule_type, code_prefixes, description, gst_rate, effective_from,
			 effective_to, priority, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, string(r.Type), strings.Join(r.CodePrefixes, ","), r.Description,
			r.GSTRate.String(), r.EffectiveFrom.UTC().Format(time.RFC3339),
			effectiveTo, r.Priority, r.Active)
		if err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// SaveReconciliationRun persists a run summary.
func (s *Store) SaveReconciliationRun(ctx context.Context, run recon.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs
		(id, gstin, period, matched, mismatched, claim_only, statement_only,
		 violations, manual_entry, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.GSTIN, run.Period.String(), run.Matched, run.Mismatched,
		run.ClaimOnly, run.StatementOnly, run.Violations, run.ManualEntry,
		run.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run: %w", err)
	}
	return nil
}

// ListReconciliationRuns returns run summaries for an issuer, newest first.
func (s *Store) ListReconciliationRuns(ctx context.Context, gstin string) ([]recon.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gstin, period, matched, mismatched, claim_only, statement_only,
		       violations, manual_entry, created_at
		FROM reconciliation_runs
		WHERE gstin = ?
		ORDER BY created_at DESC
	`, gstin)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation runs: %w", err)
	}
	defer rows.Close()

	var out []recon.RunSummary
	for rows.Next() {
		var (
			run       recon.RunSummary
			period    string
			createdAt string
		)
		if err := rows.Scan(&run.ID, &run.GSTIN, &period, &run.Matched,
			&run.Mismatched, &run.ClaimOnly, &run.StatementOnly,
			&run.Violations, &run.ManualEntry, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation run: %w", err)
		}
		run.Period, _ = gst.ParsePeriod(period)
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
