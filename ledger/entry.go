/*
Package ledger implements the input-tax-credit ledger.

PURPOSE:
  The credit ledger is the immutable source of truth for RCM-derived
  input tax credit. Every grant, consumption, reversal and adjustment is
  recorded as an append-only entry; the balance is always derived by
  replaying entries, never stored independently, so it cannot drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Corrections are reversal or
     adjustment entries.
  2. NON-NEGATIVE: No entry may drive any tax head's balance negative.
     A violating entry is rejected before it is appended and the ledger
     is left unmodified.
  3. DERIVED BALANCE: Balance is the signed sum of all entries' head-wise
     amounts. CREDIT and positive ADJUSTMENT deltas increase it, DEBIT
     and REVERSAL decrease it.

PROVISIONAL CREDIT:
  A PROVISIONAL entry participates in balance like any other entry. It is
  logically superseded by a later FINAL ADJUSTMENT referencing the same
  source - the adjustment is itself just a signed delta, not a
  replacement, so the audit trail stays intact.

SEE ALSO:
  - ledger.go: The serialized service over a Store
  - store/sqlite: Durable persistence
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// ENTRY
// =============================================================================

// EntryType classifies a ledger movement.
type EntryType string

const (
	EntryCredit     EntryType = "CREDIT"     // credit granted (self-invoice tax paid in cash)
	EntryDebit      EntryType = "DEBIT"      // credit consumed against output liability
	EntryReversal   EntryType = "REVERSAL"   // credit withdrawn (reconciliation correction)
	EntryAdjustment EntryType = "ADJUSTMENT" // signed delta (provisional-to-final true-up)
)

// EntryStatus marks provisional credit pending confirmation.
type EntryStatus string

const (
	StatusNone        EntryStatus = ""
	StatusProvisional EntryStatus = "PROVISIONAL"
	StatusFinal       EntryStatus = "FINAL"
)

// Entry is one immutable credit movement for an issuer.
type Entry struct {
	ID     string
	GSTIN  string // issuer
	Date   time.Time
	Type   EntryType
	Amount gst.TaxAmount
	Status EntryStatus

	// Reference links the entry to its source document: a self-invoice
	// number, a challan, or a reconciliation run.
	Reference string

	// IdempotencyKey dedups retried appends from at-least-once delivery.
	IdempotencyKey string

	Reason    string
	CreatedAt time.Time
}

// signedAmount returns the entry's contribution to the balance.
// ADJUSTMENT amounts are already signed; CREDIT amounts are positive by
// validation; DEBIT and REVERSAL are recorded positive and applied
// negative.
func (e Entry) signedAmount() gst.TaxAmount {
	switch e.Type {
	case EntryDebit, EntryReversal:
		return e.Amount.Neg()
	default:
		return e.Amount
	}
}

// Validate checks an entry at construction. CREDIT, DEBIT and REVERSAL
// amounts must be non-negative per head; only ADJUSTMENT entries carry
// signed deltas.
func (e Entry) Validate() error {
	if e.GSTIN == "" {
		return gst.Invalid("entry.gstin", "must not be empty")
	}
	if e.Date.IsZero() {
		return gst.Invalid("entry.date", "must not be zero")
	}
	switch e.Type {
	case EntryCredit, EntryDebit, EntryReversal:
		if head, neg := e.Amount.AnyNegative(); neg {
			return gst.Invalid("entry.amount", string(e.Type)+" amount must not be negative ("+string(head)+")")
		}
	case EntryAdjustment:
		// signed deltas allowed
	default:
		return gst.Invalid("entry.type", "unknown entry type")
	}
	switch e.Status {
	case StatusNone, StatusProvisional, StatusFinal:
	default:
		return gst.Invalid("entry.status", "unknown status")
	}
	if e.Amount.IsZero() {
		return gst.Invalid("entry.amount", "must not be zero")
	}
	return nil
}

// =============================================================================
// BALANCE - Always derived, never stored
// =============================================================================

// BalanceSnapshot is the derived head-wise balance.
type BalanceSnapshot struct {
	IGST  decimal.Decimal
	CGST  decimal.Decimal
	SGST  decimal.Decimal
	Total decimal.Decimal
}

// Tax returns the snapshot as a TaxAmount.
func (b BalanceSnapshot) Tax() gst.TaxAmount {
	return gst.TaxAmount{IGST: b.IGST, CGST: b.CGST, SGST: b.SGST}
}

// Balance derives the balance from a full entry history.
func Balance(entries []Entry) BalanceSnapshot {
	sum := gst.ZeroTax()
	for _, e := range entries {
		sum = sum.Add(e.signedAmount())
	}
	return BalanceSnapshot{IGST: sum.IGST, CGST: sum.CGST, SGST: sum.SGST, Total: sum.Total()}
}

// Apply validates an entry against the history and returns the extended
// history. If the entry would drive any head's balance negative it is
// rejected with InsufficientBalanceError identifying the offending head
// and shortfall, and the input slice is returned unchanged.
func Apply(entries []Entry, e Entry) ([]Entry, error) {
	if err := e.Validate(); err != nil {
		return entries, err
	}

	next := Balance(entries).Tax().Add(e.signedAmount())
	if head, neg := next.AnyNegative(); neg {
		available := Balance(entries).Tax().Head(head)
		requested := e.signedAmount().Head(head).Neg()
		return entries, &gst.InsufficientBalanceError{
			GSTIN:     e.GSTIN,
			Head:      head,
			Available: available,
			Requested: requested,
			Shortfall: next.Head(head).Neg(),
		}
	}

	out := make([]Entry, len(entries), len(entries)+1)
	copy(out, entries)
	return append(out, e), nil
}
