package selfinvoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rcm-engine/compliance"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/rules"
	"github.com/warp/rcm-engine/selfinvoice"
	"github.com/warp/rcm-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var issueDate = time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, now time.Time) *selfinvoice.Generator {
	reg, err := rules.NewRegistry(rules.Defaults())
	require.NoError(t, err)
	timer := compliance.NewTimer(compliance.Config{Now: func() time.Time { return now }})
	return selfinvoice.NewGenerator(reg, timer, selfinvoice.Config{Now: func() time.Time { return now }})
}

func legalServicesTxn(id string, supplierState string) selfinvoice.Transaction {
	return selfinvoice.Transaction{
		ID:                id,
		SupplierName:      "Rao & Associates",
		SupplierStateCode: supplierState,
		HSNSACCode:        "998211",
		TransactionDate:   time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		ReceiptDate:       time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC),
		TaxableAmount:     decimal.NewFromInt(10000),
	}
}

var recipient = selfinvoice.RecipientProfile{
	GSTIN:     "29AAACW1234A1Z5",
	LegalName: "Warp Commerce Pvt Ltd",
	StateCode: "29",
}

// =============================================================================
// NUMBERING
// =============================================================================

func TestNumber_Format(t *testing.T) {
	// GIVEN: Fiscal year 2024-25
	// WHEN: Rendering sequence numbers
	// THEN: SI-FY24-25/NNN, zero-padded to at least three digits

	fy := gst.FiscalYear(2024)
	assert.Equal(t, "SI-FY24-25/001", selfinvoice.Number(fy, 1))
	assert.Equal(t, "SI-FY24-25/042", selfinvoice.Number(fy, 42))
	assert.Equal(t, "SI-FY24-25/1234", selfinvoice.Number(fy, 1234))
}

// =============================================================================
// TAX SPLIT
// =============================================================================

func TestGenerate_IntraStateSplitsHalfEach(t *testing.T) {
	// GIVEN: Supplier and recipient in the same state, 18% legal services
	// WHEN: Generating the self-invoice on 10000
	// THEN: CGST 900 + SGST 900, no IGST

	gen := newTestGenerator(t, issueDate)

	inv, err := gen.Generate(legalServicesTxn("txn-1", "29"), recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)

	assert.True(t, inv.Tax.IGST.IsZero())
	assert.True(t, inv.Tax.CGST.Equal(decimal.NewFromInt(900)), "CGST %s", inv.Tax.CGST)
	assert.True(t, inv.Tax.SGST.Equal(decimal.NewFromInt(900)), "SGST %s", inv.Tax.SGST)
	assert.True(t, inv.TotalValue.Equal(decimal.NewFromInt(11800)))
	assert.Equal(t, "ntf-13-2017-legal", inv.RuleID)
}

func TestGenerate_InterStateChargesFullIGST(t *testing.T) {
	// GIVEN: Supplier in Maharashtra, recipient in Karnataka
	// WHEN: Generating
	// THEN: IGST at the full 18%, no CGST/SGST

	gen := newTestGenerator(t, issueDate)

	inv, err := gen.Generate(legalServicesTxn("txn-2", "27"), recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)

	assert.True(t, inv.Tax.IGST.Equal(decimal.NewFromInt(1800)), "IGST %s", inv.Tax.IGST)
	assert.True(t, inv.Tax.CGST.IsZero())
	assert.True(t, inv.Tax.SGST.IsZero())
}

func TestGenerate_ForeignCurrencyConvertsOnce(t *testing.T) {
	// GIVEN: An import of services priced in foreign currency
	// WHEN: Generating
	// THEN: The taxable base is amount x rate, rounded once, then taxed

	gen := newTestGenerator(t, issueDate)

	foreign := decimal.NewFromInt(100)
	rate := decimal.NewFromFloat(83.256)
	txn := legalServicesTxn("txn-3", "96") // import, cross-border
	txn.ForeignAmount = &foreign
	txn.ExchangeRate = &rate

	inv, err := gen.Generate(txn, recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)

	assert.True(t, inv.TaxableValue.Equal(decimal.NewFromFloat(8325.60)), "base %s", inv.TaxableValue)
	assert.True(t, inv.Tax.IGST.Equal(decimal.NewFromFloat(1498.61)), "IGST %s", inv.Tax.IGST)
}

func TestGenerate_CessOnTopOfSplit(t *testing.T) {
	gen := newTestGenerator(t, issueDate)

	txn := legalServicesTxn("txn-4", "29")
	txn.CessRate = decimal.NewFromInt(1)

	inv, err := gen.Generate(txn, recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)

	assert.True(t, inv.Cess.Equal(decimal.NewFromInt(100)))
	assert.True(t, inv.TotalValue.Equal(decimal.NewFromInt(11900)))
}

// =============================================================================
// COMPLIANCE FLAGS
// =============================================================================

func TestGenerate_WithinWindow(t *testing.T) {
	gen := newTestGenerator(t, issueDate)

	inv, err := gen.Generate(legalServicesTxn("txn-5", "29"), recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)
	assert.True(t, inv.IssuedWithinTime)
	assert.Equal(t, 0, inv.DaysDelayed)
}

func TestGenerate_LateIssueFlagged(t *testing.T) {
	// GIVEN: Issuing 45 days after receipt, 15 past the 30-day window
	// WHEN: Generating
	// THEN: The document still issues, flagged with the delay

	late := time.Date(2024, time.July, 20, 0, 0, 0, 0, time.UTC)
	gen := newTestGenerator(t, late)

	inv, err := gen.Generate(legalServicesTxn("txn-6", "29"), recipient, 1, gst.FiscalYear(2024))
	require.NoError(t, err)
	assert.False(t, inv.IssuedWithinTime)
	assert.Equal(t, 15, inv.DaysDelayed)
}

// =============================================================================
// VALIDATION AND CLASSIFICATION FAILURES
// =============================================================================

func TestGenerate_UnnotifiedCodeFails(t *testing.T) {
	gen := newTestGenerator(t, issueDate)

	txn := legalServicesTxn("txn-7", "29")
	txn.HSNSACCode = "997331" // not in the notified set

	_, err := gen.Generate(txn, recipient, 1, gst.FiscalYear(2024))
	assert.ErrorIs(t, err, gst.ErrNotFound)
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	gen := newTestGenerator(t, issueDate)
	fy := gst.FiscalYear(2024)

	txn := legalServicesTxn("txn-8", "29")
	txn.TaxableAmount = decimal.Zero
	_, err := gen.Generate(txn, recipient, 1, fy)
	assert.ErrorIs(t, err, gst.ErrValidation, "non-positive amount")

	txn = legalServicesTxn("", "29")
	_, err = gen.Generate(txn, recipient, 1, fy)
	assert.ErrorIs(t, err, gst.ErrValidation, "missing transaction ID")

	_, err = gen.Generate(legalServicesTxn("txn-9", "29"), recipient, 0, fy)
	assert.ErrorIs(t, err, gst.ErrValidation, "non-positive sequence")

	_, err = gen.Generate(legalServicesTxn("txn-10", "29"), selfinvoice.RecipientProfile{}, 1, fy)
	assert.ErrorIs(t, err, gst.ErrValidation, "empty recipient")
}

// =============================================================================
// BATCH GENERATION
// =============================================================================

func TestGenerateBatch_SkipsLapsedAndContinues(t *testing.T) {
	// GIVEN: A batch where one receipt lapsed past the statutory ceiling
	//        and one fails classification
	// WHEN: Generating in bulk
	// THEN: Good transactions issue with consecutive sequences; the bad
	//       ones land in the failure list; the batch never aborts

	gen := newTestGenerator(t, issueDate)

	lapsed := legalServicesTxn("txn-lapsed", "29")
	lapsed.ReceiptDate = issueDate.AddDate(0, 0, -200)

	unnotified := legalServicesTxn("txn-unnotified", "29")
	unnotified.HSNSACCode = "997331"

	batch := []selfinvoice.Transaction{
		legalServicesTxn("txn-a", "29"),
		lapsed,
		unnotified,
		legalServicesTxn("txn-b", "27"),
	}

	invoices, failures := gen.GenerateBatch(batch, recipient, 1, gst.FiscalYear(2024))

	require.Len(t, invoices, 2)
	assert.Equal(t, "SI-FY24-25/001", invoices[0].Number)
	assert.Equal(t, "SI-FY24-25/002", invoices[1].Number)

	require.Len(t, failures, 2)
	assert.Equal(t, "txn-lapsed", failures[0].TransactionID)
	assert.ErrorIs(t, failures[0].Err, gst.ErrComplianceViolation)
	var cv *gst.ComplianceViolationError
	require.True(t, errors.As(failures[0].Err, &cv))
	assert.Equal(t, "TIME_LIMIT_EXCEEDED", cv.Code)
	assert.Equal(t, "txn-unnotified", failures[1].TransactionID)
}

// =============================================================================
// ISSUER - Idempotent issuance over a store
// =============================================================================

func newTestIssuer(t *testing.T, now time.Time) (*selfinvoice.Issuer, *memory.Store) {
	store := memory.New()
	reg, err := rules.NewRegistry(rules.Defaults())
	require.NoError(t, err)
	timer := compliance.NewTimer(compliance.Config{Now: func() time.Time { return now }})
	gen := selfinvoice.NewGenerator(reg, timer, selfinvoice.Config{Now: func() time.Time { return now }})
	return selfinvoice.NewIssuer(gen, store), store
}

func TestIssuer_RetryReturnsStoredInvoice(t *testing.T) {
	// GIVEN: A transaction already issued
	// WHEN: The queue redelivers it
	// THEN: The stored invoice comes back; no new number is consumed

	issuer, _ := newTestIssuer(t, issueDate)
	ctx := context.Background()

	first, err := issuer.Issue(ctx, legalServicesTxn("txn-1", "29"), recipient)
	require.NoError(t, err)
	assert.Equal(t, "SI-FY24-25/001", first.Number)

	retry, err := issuer.Issue(ctx, legalServicesTxn("txn-1", "29"), recipient)
	require.NoError(t, err)
	assert.Equal(t, first.Number, retry.Number)

	// The next distinct transaction continues the sequence at 002
	second, err := issuer.Issue(ctx, legalServicesTxn("txn-2", "29"), recipient)
	require.NoError(t, err)
	assert.Equal(t, "SI-FY24-25/002", second.Number)
}

func TestIssuer_SequenceResetsAcrossFiscalYears(t *testing.T) {
	// GIVEN: Invoices issued in FY 24-25
	// WHEN: Issuing against a receipt in FY 25-26
	// THEN: Numbering restarts at 001 under the new fiscal year label

	issuer, _ := newTestIssuer(t, issueDate)
	ctx := context.Background()

	_, err := issuer.Issue(ctx, legalServicesTxn("txn-1", "29"), recipient)
	require.NoError(t, err)

	nextFY := legalServicesTxn("txn-2", "29")
	nextFY.TransactionDate = time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	nextFY.ReceiptDate = time.Date(2025, time.April, 12, 0, 0, 0, 0, time.UTC)

	inv, err := issuer.Issue(ctx, nextFY, recipient)
	require.NoError(t, err)
	assert.Equal(t, "SI-FY25-26/001", inv.Number)
}

func TestIssuer_BatchIsolatesFailures(t *testing.T) {
	issuer, _ := newTestIssuer(t, issueDate)
	ctx := context.Background()

	lapsed := legalServicesTxn("txn-lapsed", "29")
	lapsed.ReceiptDate = issueDate.AddDate(0, 0, -200)

	invoices, failures := issuer.IssueBatch(ctx, []selfinvoice.Transaction{
		legalServicesTxn("txn-a", "29"),
		lapsed,
		legalServicesTxn("txn-b", "29"),
	}, recipient)

	assert.Len(t, invoices, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "txn-lapsed", failures[0].TransactionID)
}
