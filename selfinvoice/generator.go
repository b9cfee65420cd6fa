/*
generator.go - Self-invoice generation

PURPOSE:
  Turns a classified reverse-charge transaction into a compensating tax
  document: sequential numbering per fiscal year, intra-/inter-state tax
  split, foreign-currency conversion, and the compliance flags derived
  from the statutory 30-day window.

TAX SPLIT:
  Supplier state == recipient state  ->  CGST + SGST at half rate each
  Supplier state != recipient state  ->  IGST at the full rate
  Cess, if configured, is added on top of whichever split applies.

ROUNDING:
  Foreign-currency amounts are converted before tax computation, and the
  taxable base is rounded exactly once before GST calculation so rounding
  never compounds.

IDEMPOTENCY:
  Generation is idempotent per source transaction: the caller persists
  invoices keyed by SourceTransactionID, and a retried batch job is
  absorbed rather than double-issuing. See store/sqlite.
*/
package selfinvoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/compliance"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/rules"
)

// =============================================================================
// NUMBERING
// =============================================================================

// Number renders a self-invoice number: SI-FY{yy}-{yy}/{seq}, sequence
// zero-padded to at least three digits. Sequences are monotonically
// increasing per issuer per fiscal year (April-March).
func Number(fy gst.FiscalYear, seq int) string {
	return fmt.Sprintf("SI-FY%s/%03d", fy.Label(), seq)
}

// =============================================================================
// GENERATOR
// =============================================================================

// Config bounds batch generation.
type Config struct {
	// HardCeilingDays is the statutory ceiling past which a lapsed
	// transaction is skipped in bulk generation rather than issued late.
	HardCeilingDays int

	// Now supplies the issue date; overridable in tests.
	Now func() time.Time
}

const DefaultHardCeilingDays = 180

// Generator produces self-invoices. Rate comes from the rule registry,
// compliance flags from the timer.
type Generator struct {
	registry *rules.Registry
	timer    *compliance.Timer
	cfg      Config
}

// NewGenerator wires a generator to its rule registry and compliance
// timer. Zero config fields fall back to defaults.
func NewGenerator(registry *rules.Registry, timer *compliance.Timer, cfg Config) *Generator {
	if cfg.HardCeilingDays == 0 {
		cfg.HardCeilingDays = DefaultHardCeilingDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{registry: registry, timer: timer, cfg: cfg}
}

// Generate produces the self-invoice for one transaction.
//
// The transaction must classify against a notified rule as of its
// transaction date; an unclassifiable transaction is not compensable and
// yields ErrNotFound. Validation failures (bad amounts, bad dates) yield
// ErrValidation.
func (g *Generator) Generate(txn Transaction, recipient RecipientProfile, seq int, fy gst.FiscalYear) (*SelfInvoice, error) {
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}
	if recipient.GSTIN == "" || recipient.StateCode == "" {
		return nil, gst.Invalid("recipient", "GSTIN and state code required")
	}
	if seq <= 0 {
		return nil, gst.Invalid("sequence", "must be positive")
	}

	match, ok := g.registry.Match(txn.HSNSACCode, txn.SupplierGSTIN, txn.TransactionDate)
	if !ok {
		return nil, fmt.Errorf("code %s not notified under reverse charge: %w", txn.HSNSACCode, gst.ErrNotFound)
	}

	base := taxableBase(txn)

	rate := match.Rule.GSTRate
	tax := splitTax(base, rate, txn.SupplierStateCode, recipient.StateCode)
	cess := gst.RoundMoney(base.Mul(txn.CessRate).Div(decimal.NewFromInt(100)))

	issueDate := g.cfg.Now()
	daysSinceReceipt := gst.DaysBetween(txn.ReceiptDate, issueDate)
	withinTime := daysSinceReceipt <= g.timer.WindowDays()
	daysDelayed := daysSinceReceipt - g.timer.WindowDays()
	if daysDelayed < 0 {
		daysDelayed = 0
	}

	return &SelfInvoice{
		Number:              Number(fy, seq),
		SourceTransactionID: txn.ID,
		IssueDate:           issueDate,
		RecipientGSTIN:      recipient.GSTIN,
		SupplierName:        txn.SupplierName,
		SupplierGSTIN:       txn.SupplierGSTIN,
		SupplierStateCode:   txn.SupplierStateCode,
		HSNSACCode:          match.Code,
		RuleID:              match.Rule.ID,
		TaxableValue:        base,
		GSTRate:             rate,
		Tax:                 tax,
		Cess:                cess,
		TotalValue:          base.Add(tax.Total()).Add(cess),
		IssuedWithinTime:    withinTime,
		DaysDelayed:         daysDelayed,
	}, nil
}

// GenerateBatch processes transactions in order, continuing the sequence
// from startSeq. Transactions whose compliance window has lapsed past the
// hard statutory ceiling, and transactions that fail validation or
// classification, are skipped and collected into the failure list; the
// batch itself never aborts.
func (g *Generator) GenerateBatch(txns []Transaction, recipient RecipientProfile, startSeq int, fy gst.FiscalYear) ([]*SelfInvoice, []BatchFailure) {
	var (
		invoices []*SelfInvoice
		failures []BatchFailure
		seq      = startSeq
	)
	now := g.cfg.Now()

	for _, txn := range txns {
		if g.PastStatutoryCeiling(txn, now) {
			failures = append(failures, BatchFailure{TransactionID: txn.ID, Err: g.ceilingViolation()})
			continue
		}

		inv, err := g.Generate(txn, recipient, seq, fy)
		if err != nil {
			failures = append(failures, BatchFailure{TransactionID: txn.ID, Err: err})
			continue
		}
		invoices = append(invoices, inv)
		seq++
	}
	return invoices, failures
}

// PastStatutoryCeiling reports whether a transaction's compliance window
// has lapsed beyond the hard ceiling, past which bulk generation skips it.
func (g *Generator) PastStatutoryCeiling(txn Transaction, now time.Time) bool {
	return !txn.ReceiptDate.IsZero() && gst.DaysBetween(txn.ReceiptDate, now) > g.cfg.HardCeilingDays
}

func (g *Generator) ceilingViolation() error {
	return &gst.ComplianceViolationError{
		Code: "TIME_LIMIT_EXCEEDED",
		Message: fmt.Sprintf("receipt lapsed beyond the %d-day ceiling; requires manual assessment",
			g.cfg.HardCeilingDays),
	}
}

// =============================================================================
// TAX COMPUTATION
// =============================================================================

// taxableBase resolves the local-currency taxable base, converting
// foreign-currency amounts first. Rounded exactly once.
func taxableBase(txn Transaction) decimal.Decimal {
	if txn.ForeignAmount != nil && txn.ExchangeRate != nil {
		return gst.RoundMoney(txn.ForeignAmount.Mul(*txn.ExchangeRate))
	}
	return gst.RoundMoney(txn.TaxableAmount)
}

// splitTax applies the intra-/inter-state split. Intra-state supplies
// split the rate in half between CGST and SGST; inter-state supplies
// carry the full rate as IGST.
func splitTax(base, ratePercent decimal.Decimal, supplierState, recipientState string) gst.TaxAmount {
	hundred := decimal.NewFromInt(100)
	if supplierState == recipientState {
		half := gst.RoundMoney(base.Mul(ratePercent).Div(hundred).Div(decimal.NewFromInt(2)))
		return gst.TaxAmount{IGST: decimal.Zero, CGST: half, SGST: half}
	}
	full := gst.RoundMoney(base.Mul(ratePercent).Div(hundred))
	return gst.TaxAmount{IGST: full, CGST: decimal.Zero, SGST: decimal.Zero}
}

func validateTransaction(txn Transaction) error {
	if txn.ID == "" {
		return gst.Invalid("transaction.id", "must not be empty")
	}
	if txn.ReceiptDate.IsZero() {
		return gst.Invalid("transaction.receiptDate", "must not be zero")
	}
	if txn.TransactionDate.IsZero() {
		return gst.Invalid("transaction.transactionDate", "must not be zero")
	}
	if txn.ForeignAmount != nil {
		if txn.ExchangeRate == nil || !txn.ExchangeRate.IsPositive() {
			return gst.Invalid("transaction.exchangeRate", "required and positive for foreign-currency amounts")
		}
		if !txn.ForeignAmount.IsPositive() {
			return gst.Invalid("transaction.foreignAmount", "must be positive")
		}
	} else if !txn.TaxableAmount.IsPositive() {
		return gst.Invalid("transaction.taxableAmount", "must be positive")
	}
	if txn.CessRate.IsNegative() {
		return gst.Invalid("transaction.cessRate", "must not be negative")
	}
	if txn.SupplierStateCode == "" {
		return gst.Invalid("transaction.supplierStateCode", "required for the tax split")
	}
	return nil
}
