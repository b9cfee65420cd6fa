package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testGSTIN = "29AAACW1234A1Z5"

func entry(id string, typ ledger.EntryType, igst, cgst, sgst string, day int) ledger.Entry {
	return ledger.Entry{
		ID:     id,
		GSTIN:  testGSTIN,
		Date:   time.Date(2024, time.June, day, 0, 0, 0, 0, time.UTC),
		Type:   typ,
		Amount: gst.NewTaxAmount(igst, cgst, sgst),
	}
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(memory.New())
}

// =============================================================================
// DERIVED BALANCE
// =============================================================================

func TestBalance_SignedSumPerHead(t *testing.T) {
	// GIVEN: Credits, a debit and a reversal
	// WHEN: Deriving the balance
	// THEN: CREDIT adds, DEBIT and REVERSAL subtract, per head

	entries := []ledger.Entry{
		entry("e1", ledger.EntryCredit, "1000", "500", "500", 1),
		entry("e2", ledger.EntryDebit, "200", "0", "0", 2),
		entry("e3", ledger.EntryReversal, "0", "100", "100", 3),
	}
	bal := ledger.Balance(entries)

	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(800)))
	assert.True(t, bal.CGST.Equal(decimal.NewFromInt(400)))
	assert.True(t, bal.SGST.Equal(decimal.NewFromInt(400)))
	assert.True(t, bal.Total.Equal(decimal.NewFromInt(1600)))
}

func TestBalance_AdjustmentCarriesItsSign(t *testing.T) {
	entries := []ledger.Entry{
		entry("e1", ledger.EntryCredit, "1000", "0", "0", 1),
		entry("e2", ledger.EntryAdjustment, "-300", "0", "0", 2),
	}
	bal := ledger.Balance(entries)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(700)))
}

// =============================================================================
// NON-NEGATIVE INVARIANT
// =============================================================================

func TestApply_RejectsOverdraft(t *testing.T) {
	// GIVEN: 1000 IGST credit on hand
	// WHEN: Debiting 1500 IGST
	// THEN: Rejected with the offending head and shortfall; history unchanged

	history := []ledger.Entry{entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)}

	out, err := ledger.Apply(history, entry("e2", ledger.EntryDebit, "1500", "0", "0", 2))

	require.ErrorIs(t, err, gst.ErrInsufficientBalance)
	var ib *gst.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, gst.HeadIGST, ib.Head)
	assert.True(t, ib.Available.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ib.Requested.Equal(decimal.NewFromInt(1500)))
	assert.True(t, ib.Shortfall.Equal(decimal.NewFromInt(500)))
	assert.Len(t, out, 1, "rejected entry must not extend the history")
}

func TestApply_HeadsAreIndependent(t *testing.T) {
	// GIVEN: Plenty of CGST but no IGST
	// WHEN: Debiting IGST
	// THEN: Rejected; a healthy total cannot mask an overdrawn head

	history := []ledger.Entry{entry("e1", ledger.EntryCredit, "0", "5000", "5000", 1)}

	_, err := ledger.Apply(history, entry("e2", ledger.EntryDebit, "1", "0", "0", 2))
	assert.ErrorIs(t, err, gst.ErrInsufficientBalance)
}

func TestApply_ExactDrainToZeroAllowed(t *testing.T) {
	history := []ledger.Entry{entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)}

	out, err := ledger.Apply(history, entry("e2", ledger.EntryDebit, "1000", "0", "0", 2))
	require.NoError(t, err)
	assert.True(t, ledger.Balance(out).IGST.IsZero())
}

func TestApply_NegativeAdjustmentBoundedByBalance(t *testing.T) {
	history := []ledger.Entry{entry("e1", ledger.EntryCredit, "100", "0", "0", 1)}

	_, err := ledger.Apply(history, entry("e2", ledger.EntryAdjustment, "-200", "0", "0", 2))
	assert.ErrorIs(t, err, gst.ErrInsufficientBalance)
}

// =============================================================================
// ENTRY VALIDATION
// =============================================================================

func TestValidate_RejectsMalformedEntries(t *testing.T) {
	cases := []struct {
		name string
		e    ledger.Entry
	}{
		{"missing gstin", ledger.Entry{Date: time.Now(), Type: ledger.EntryCredit, Amount: gst.NewTaxAmount("1", "0", "0")}},
		{"zero date", ledger.Entry{GSTIN: testGSTIN, Type: ledger.EntryCredit, Amount: gst.NewTaxAmount("1", "0", "0")}},
		{"negative credit", entry("e", ledger.EntryCredit, "-1", "0", "0", 1)},
		{"negative debit", entry("e", ledger.EntryDebit, "0", "-1", "0", 1)},
		{"zero amount", entry("e", ledger.EntryCredit, "0", "0", "0", 1)},
		{"unknown type", ledger.Entry{GSTIN: testGSTIN, Date: time.Now(), Type: "TRANSFER", Amount: gst.NewTaxAmount("1", "0", "0")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.e.Validate(), gst.ErrValidation)
		})
	}
}

// =============================================================================
// LEDGER SERVICE
// =============================================================================

func TestLedger_PostAndBalance(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, led.Post(ctx, entry("e1", ledger.EntryCredit, "1000", "500", "500", 1)))
	require.NoError(t, led.Post(ctx, entry("e2", ledger.EntryDebit, "400", "0", "0", 2)))

	bal, err := led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(600)))
}

func TestLedger_RejectedPostLeavesLedgerUnchanged(t *testing.T) {
	// GIVEN: A ledger with 1000 IGST
	// WHEN: An overdrawing debit is rejected
	// THEN: The balance and history are exactly as before

	led := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, led.Post(ctx, entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)))

	err := led.Post(ctx, entry("e2", ledger.EntryDebit, "2000", "0", "0", 2))
	require.ErrorIs(t, err, gst.ErrInsufficientBalance)

	bal, err := led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(1000)))

	history, err := led.Entries(ctx, testGSTIN)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_IdempotentRetryRejected(t *testing.T) {
	// GIVEN: An entry posted with an idempotency key
	// WHEN: The queue redelivers it
	// THEN: ErrDuplicateReference, and the balance counts it once

	led := newTestLedger(t)
	ctx := context.Background()

	e := entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)
	e.IdempotencyKey = "job-42"
	require.NoError(t, led.Post(ctx, e))

	retry := e
	retry.ID = "e1-retry"
	assert.ErrorIs(t, led.Post(ctx, retry), gst.ErrDuplicateReference)

	bal, err := led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(1000)))
}

func TestLedger_BalanceAsOf(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, led.Post(ctx, entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)))
	require.NoError(t, led.Post(ctx, entry("e2", ledger.EntryDebit, "400", "0", "0", 15)))

	bal, err := led.BalanceAsOf(ctx, testGSTIN, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(1000)), "debit on the 15th not yet visible")
}

func TestLedger_PostBatchSkipsRetriesStopsOnRejection(t *testing.T) {
	// GIVEN: A batch holding one already-posted key and one overdraft
	// WHEN: Posting the batch
	// THEN: The retry is skipped, entries before the overdraft stand, the
	//       overdraft stops the batch

	led := newTestLedger(t)
	ctx := context.Background()

	seeded := entry("e0", ledger.EntryCredit, "500", "0", "0", 1)
	seeded.IdempotencyKey = "seed"
	require.NoError(t, led.Post(ctx, seeded))

	retry := seeded
	retry.ID = "e0-retry"

	batch := []ledger.Entry{
		retry,
		entry("e1", ledger.EntryCredit, "100", "0", "0", 2),
		entry("e2", ledger.EntryDebit, "9999", "0", "0", 3),
		entry("e3", ledger.EntryCredit, "100", "0", "0", 4),
	}
	err := led.PostBatch(ctx, testGSTIN, batch)
	require.ErrorIs(t, err, gst.ErrInsufficientBalance)

	bal, err := led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(600)), "seed + e1, nothing past the rejection")
}

func TestLedger_ProvisionalEntriesCountTowardBalance(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	e := entry("e1", ledger.EntryCredit, "1000", "0", "0", 1)
	e.Status = ledger.StatusProvisional
	require.NoError(t, led.Post(ctx, e))

	bal, err := led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(1000)))

	// Final true-up is a signed delta, not a replacement
	trueUp := entry("e2", ledger.EntryAdjustment, "-200", "0", "0", 20)
	trueUp.Status = ledger.StatusFinal
	trueUp.Reference = "e1"
	require.NoError(t, led.Post(ctx, trueUp))

	bal, err = led.CurrentBalance(ctx, testGSTIN)
	require.NoError(t, err)
	assert.True(t, bal.IGST.Equal(decimal.NewFromInt(800)))

	history, err := led.Entries(ctx, testGSTIN)
	require.NoError(t, err)
	assert.Len(t, history, 2, "audit trail keeps both entries")
}
