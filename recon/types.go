// Package recon reconciles self-reported input-tax-credit claims against
// the externally supplied GSTR-2B statement for the same return period.
package recon

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// STATEMENT SIDE - GSTR-2B
// =============================================================================

// StatementEntry is one GSTR-2B line as supplied wholesale per return
// period by the external feed. Opaque to this engine beyond these fields.
type StatementEntry struct {
	SupplierGSTIN  string
	TradeName      string
	DocumentNumber string
	DocumentDate   time.Time

	TaxableValue decimal.Decimal
	Tax          gst.TaxAmount

	// Eligible vs blocked split of the credit. A claim must not exceed
	// the eligible portion.
	EligibleITC gst.TaxAmount
	BlockedITC  gst.TaxAmount

	// Amendment linkage. An amendment supersedes an earlier document and
	// is adjusted in the current period.
	IsAmendment            bool
	OriginalDocumentNumber string
	OriginalDocumentDate   time.Time
}

// =============================================================================
// CLAIM SIDE
// =============================================================================

// ClaimSource distinguishes ordinary purchase claims from RCM-originated
// (self-invoiced) claims, which never appear in the external statement.
type ClaimSource string

const (
	SourcePurchase ClaimSource = "PURCHASE"
	SourceRCM      ClaimSource = "RCM"
)

// ClaimedEntry is one self-reported credit line for the period.
type ClaimedEntry struct {
	SupplierGSTIN  string // empty for RCM self-invoices
	DocumentNumber string
	DocumentDate   time.Time
	TaxableValue   decimal.Decimal
	Claimed        gst.TaxAmount
	Source         ClaimSource
}

// =============================================================================
// RESULT
// =============================================================================

// MatchStatus classifies one claim/statement pairing.
type MatchStatus string

const (
	StatusMatched        MatchStatus = "MATCHED"
	StatusAmountMismatch MatchStatus = "AMOUNT_MISMATCH"
	StatusNotInStatement MatchStatus = "NOT_IN_STATEMENT"
	StatusStatementOnly  MatchStatus = "IN_STATEMENT_ONLY"
)

// Pairing joins a claimed entry with its statement counterpart.
// Difference carries the per-head absolute delta when amounts mismatch.
type Pairing struct {
	Claim      ClaimedEntry
	Statement  StatementEntry
	Status     MatchStatus
	Difference gst.TaxAmount
}

// ViolationCode flags contract violations requiring attention, as
// distinct from ordinary mismatches.
type ViolationCode string

const ViolationClaimedBlockedITC ViolationCode = "CLAIMED_BLOCKED_ITC"

// Violation records a claim exceeding the statement's eligible portion.
type Violation struct {
	Code      ViolationCode
	Claim     ClaimedEntry
	Statement StatementEntry
	Excess    gst.TaxAmount // per-head amount claimed beyond eligible
}

// Amendment surfaces a statement entry that amends an earlier document.
// Per the feed's semantics it is adjusted in the current period, not
// retroactively in the original period.
type Amendment struct {
	Statement              StatementEntry
	OriginalDocumentNumber string
	OriginalDocumentDate   time.Time
}

// Result is the full reconciliation outcome. Mismatches are structured
// data, not errors; only Violations require attention as contract
// breaches.
type Result struct {
	Matched       []Pairing
	Mismatches    []Pairing
	ClaimOnly     []ClaimedEntry   // NOT_IN_STATEMENT
	StatementOnly []StatementEntry // IN_STATEMENT_ONLY: unclaimed entitlement
	Violations    []Violation
	Amendments    []Amendment

	// ManualEntry collects RCM-originated claims. Self-invoiced credit
	// never appears in the external statement, so its absence is not a
	// mismatch; it needs manual entry in the return instead.
	ManualEntry []ClaimedEntry
}

// RunSummary is the persisted record of one reconciliation run, kept for
// audit and period-close reporting.
type RunSummary struct {
	ID            string
	GSTIN         string
	Period        gst.ReturnPeriod
	Matched       int
	Mismatched    int
	ClaimOnly     int
	StatementOnly int
	Violations    int
	ManualEntry   int
	CreatedAt     time.Time
}

// Summarize counts a result into a run summary. ID and CreatedAt are
// filled by the caller at persistence time.
func Summarize(res Result, gstin string, period gst.ReturnPeriod) RunSummary {
	return RunSummary{
		GSTIN:         gstin,
		Period:        period,
		Matched:       len(res.Matched),
		Mismatched:    len(res.Mismatches),
		ClaimOnly:     len(res.ClaimOnly),
		StatementOnly: len(res.StatementOnly),
		Violations:    len(res.Violations),
		ManualEntry:   len(res.ManualEntry),
	}
}
