package selfinvoice

import (
	"context"
	"errors"

	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// INVOICE STORE - Persistence interface
// =============================================================================

// InvoiceStore persists generated self-invoices and issues sequence
// numbers. Implementations enforce uniqueness on the source transaction
// so a retried job cannot double-issue.
type InvoiceStore interface {
	// SaveInvoice persists an invoice. Returns ErrDuplicateReference if
	// one already exists for the same source transaction.
	SaveInvoice(ctx context.Context, inv SelfInvoice) error

	// InvoiceBySource returns the invoice for a source transaction, or
	// ErrNotFound.
	InvoiceBySource(ctx context.Context, sourceTransactionID string) (*SelfInvoice, error)

	// NextSequence returns the next monotonically increasing sequence
	// number for an issuer and fiscal year.
	NextSequence(ctx context.Context, gstin string, fy gst.FiscalYear) (int, error)
}

// =============================================================================
// ISSUER - Idempotent generation over a store
// =============================================================================

// Issuer wraps the generator with persistence and makes issuance
// idempotent per source transaction. The queue that drives generation
// delivers at least once; retries land here and are absorbed.
type Issuer struct {
	gen   *Generator
	store InvoiceStore
}

// NewIssuer wires a generator to its store.
func NewIssuer(gen *Generator, store InvoiceStore) *Issuer {
	return &Issuer{gen: gen, store: store}
}

// Issue generates and persists the self-invoice for a transaction. If one
// already exists for the transaction it is returned unchanged and no new
// document or sequence number is consumed.
func (i *Issuer) Issue(ctx context.Context, txn Transaction, recipient RecipientProfile) (*SelfInvoice, error) {
	if existing, err := i.store.InvoiceBySource(ctx, txn.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gst.ErrNotFound) {
		return nil, err
	}

	fy := gst.FiscalYearOf(txn.ReceiptDate)
	seq, err := i.store.NextSequence(ctx, recipient.GSTIN, fy)
	if err != nil {
		return nil, err
	}

	inv, err := i.gen.Generate(txn, recipient, seq, fy)
	if err != nil {
		return nil, err
	}

	if err := i.store.SaveInvoice(ctx, *inv); err != nil {
		// Lost a race with a concurrent retry: the stored invoice wins.
		if errors.Is(err, gst.ErrDuplicateReference) {
			return i.store.InvoiceBySource(ctx, txn.ID)
		}
		return nil, err
	}
	return inv, nil
}

// IssueBatch issues invoices for a batch in order, isolating per-item
// failures into the returned failure list.
func (i *Issuer) IssueBatch(ctx context.Context, txns []Transaction, recipient RecipientProfile) ([]*SelfInvoice, []BatchFailure) {
	var (
		invoices []*SelfInvoice
		failures []BatchFailure
	)
	now := i.gen.cfg.Now()
	for _, txn := range txns {
		if i.gen.PastStatutoryCeiling(txn, now) {
			failures = append(failures, BatchFailure{TransactionID: txn.ID, Err: i.gen.ceilingViolation()})
			continue
		}
		inv, err := i.Issue(ctx, txn, recipient)
		if err != nil {
			failures = append(failures, BatchFailure{TransactionID: txn.ID, Err: err})
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, failures
}
