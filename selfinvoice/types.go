// Package selfinvoice generates the compensating tax documents a
// recipient issues to itself for reverse-charge transactions.
package selfinvoice

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// INPUT RECORDS
// =============================================================================

// Transaction is an inward reverse-charge transaction as recorded by the
// invoicing subsystem. Read-only to this engine.
type Transaction struct {
	ID string

	// Counterparty (supplier) snapshot
	SupplierName      string
	SupplierGSTIN     string // empty = unregistered supplier
	SupplierStateCode string // two-digit place-of-supply state code

	HSNSACCode      string
	TransactionDate time.Time
	ReceiptDate     time.Time

	// TaxableAmount is in local currency. For foreign-currency deals,
	// ForeignAmount x ExchangeRate replaces it as the taxable base.
	TaxableAmount decimal.Decimal
	ForeignAmount *decimal.Decimal
	ExchangeRate  *decimal.Decimal

	// CessRate is an optional additional levy, percent on the taxable base.
	CessRate decimal.Decimal
}

// RecipientProfile identifies the issuer of the self-invoice.
type RecipientProfile struct {
	GSTIN     string
	LegalName string
	StateCode string
}

// =============================================================================
// SELF-INVOICE
// =============================================================================

// SelfInvoice is the generated compensating document. Immutable after
// creation except for late-issuance metadata, which is derived from the
// compliance timer at generation time and not stored independently.
type SelfInvoice struct {
	Number              string
	SourceTransactionID string
	IssueDate           time.Time

	RecipientGSTIN string

	// Counterparty snapshot at generation time
	SupplierName      string
	SupplierGSTIN     string
	SupplierStateCode string

	HSNSACCode   string
	RuleID       string // notified rule that set the rate
	TaxableValue decimal.Decimal
	GSTRate      decimal.Decimal
	Tax          gst.TaxAmount
	Cess         decimal.Decimal
	TotalValue   decimal.Decimal

	IssuedWithinTime bool
	DaysDelayed      int
}

// BatchFailure records one skipped transaction in a bulk run. Failures
// are collected alongside the generated list; a bad transaction never
// aborts the batch.
type BatchFailure struct {
	TransactionID string
	Err           error
}

func (f BatchFailure) Error() string {
	return "transaction " + f.TransactionID + ": " + f.Err.Error()
}
