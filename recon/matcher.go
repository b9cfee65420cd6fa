/*
matcher.go - Claim-vs-statement matching

PURPOSE:
  Matches claimed credit lines against the period's GSTR-2B statement and
  classifies every pairing rather than merely detecting differences.

MATCHING KEY:
  (supplier GSTIN, document number, document date) - exact on all three.
  Amount comparison is then per tax head with exact equality; any
  head-wise difference is AMOUNT_MISMATCH with the numeric delta.

CLASSIFICATION:
  - Claim without statement counterpart  -> NOT_IN_STATEMENT
  - Statement without claim              -> IN_STATEMENT_ONLY (surfaced,
    never silently dropped: it is credit the claimant has not yet taken)
  - Claim exceeding the eligible portion -> CLAIMED_BLOCKED_ITC violation
  - RCM-originated claims                -> ManualEntry, never mismatches
  - Statement amendments                 -> Amendments, adjusted in the
    current period
*/
package recon

import (
	"time"

	"github.com/warp/rcm-engine/gst"
	"github.com/warp/rcm-engine/ledger"
)

// docKey is the exact matching key.
type docKey struct {
	gstin string
	docNo string
	day   string // yyyy-mm-dd
}

func keyOf(gstin, docNo string, date time.Time) docKey {
	return docKey{gstin: gstin, docNo: docNo, day: date.UTC().Format("2006-01-02")}
}

// Match reconciles one period's claimed entries against its statement.
// Pure function of its inputs; safe to run per period/issuer in parallel.
func Match(statement []StatementEntry, claimed []ClaimedEntry) Result {
	var res Result

	// Last entry wins on a duplicate key; the earlier duplicates stay
	// unconsumed and surface in StatementOnly below.
	byKey := make(map[docKey]int, len(statement))
	consumed := make(map[int]bool, len(statement))
	for i := range statement {
		s := &statement[i]
		byKey[keyOf(s.SupplierGSTIN, s.DocumentNumber, s.DocumentDate)] = i
		if s.IsAmendment {
			res.Amendments = append(res.Amendments, Amendment{
				Statement:              *s,
				OriginalDocumentNumber: s.OriginalDocumentNumber,
				OriginalDocumentDate:   s.OriginalDocumentDate,
			})
		}
	}

	for _, c := range claimed {
		// Self-invoiced credit has no supplier filing to appear in the
		// statement; route it to manual entry instead of mismatch.
		if c.Source == SourceRCM || c.SupplierGSTIN == "" {
			res.ManualEntry = append(res.ManualEntry, c)
			continue
		}

		k := keyOf(c.SupplierGSTIN, c.DocumentNumber, c.DocumentDate)
		idx, ok := byKey[k]
		if !ok {
			res.ClaimOnly = append(res.ClaimOnly, c)
			continue
		}
		s := &statement[idx]
		consumed[idx] = true

		pairing := Pairing{Claim: c, Statement: *s}
		if c.Claimed.Equal(s.Tax) {
			pairing.Status = StatusMatched
			res.Matched = append(res.Matched, pairing)
		} else {
			pairing.Status = StatusAmountMismatch
			pairing.Difference = c.Claimed.Sub(s.Tax).Abs()
			res.Mismatches = append(res.Mismatches, pairing)
		}

		// Contract violation: claiming beyond the eligible (non-blocked)
		// portion, regardless of whether the totals matched.
		excess := c.Claimed.Sub(s.EligibleITC).ClampPositive()
		if !excess.IsZero() {
			res.Violations = append(res.Violations, Violation{
				Code:      ViolationClaimedBlockedITC,
				Claim:     c,
				Statement: *s,
				Excess:    excess,
			})
		}
	}

	for i := range statement {
		if !consumed[i] {
			res.StatementOnly = append(res.StatementOnly, statement[i])
		}
	}

	return res
}

// =============================================================================
// CORRECTION ENTRIES - Feed reconciliation output back into the ledger
// =============================================================================

// CorrectionEntries derives ledger corrections from a reconciliation
// result for the issuer:
//
//   - over-claims (claimed > statement) are reversed head-wise
//   - blocked-credit violations are reversed head-wise over the
//     eligible portion
//   - claims absent from the statement are reversed provisionally,
//     pending the supplier's late filing
//
// A document gets at most one reversal. Eligible never exceeds the
// statement tax, so a claim that trips the blocked-credit violation
// already contains any over-claim against the statement total; the
// violation reversal covers both and the mismatch reversal is skipped
// for that document.
//
// The entries carry the document number as reference and are posted by
// the caller through the serialized ledger service.
func CorrectionEntries(res Result, gstin string, date time.Time) []ledger.Entry {
	var out []ledger.Entry

	violated := make(map[string]bool, len(res.Violations))
	for _, v := range res.Violations {
		violated[v.Claim.DocumentNumber] = true
	}

	for _, m := range res.Mismatches {
		if violated[m.Claim.DocumentNumber] {
			continue
		}
		over := m.Claim.Claimed.Sub(m.Statement.Tax).ClampPositive()
		if over.IsZero() {
			continue // under-claims leave credit on the table, nothing to reverse
		}
		out = append(out, ledger.Entry{
			GSTIN:          gstin,
			Date:           date,
			Type:           ledger.EntryReversal,
			Amount:         over,
			Reference:      m.Claim.DocumentNumber,
			IdempotencyKey: correctionKey(gstin, "mismatch", m.Claim.DocumentNumber, date),
			Reason:         "reconciliation: claimed exceeds statement",
		})
	}

	for _, v := range res.Violations {
		// Head-wise max guards a malformed feed where eligible exceeds
		// the statement tax on some head.
		over := v.Claim.Claimed.Sub(v.Statement.Tax).ClampPositive()
		out = append(out, ledger.Entry{
			GSTIN:          gstin,
			Date:           date,
			Type:           ledger.EntryReversal,
			Amount:         headMax(v.Excess, over),
			Reference:      v.Claim.DocumentNumber,
			IdempotencyKey: correctionKey(gstin, "blocked", v.Claim.DocumentNumber, date),
			Reason:         "reconciliation: blocked credit claimed",
		})
	}

	for _, c := range res.ClaimOnly {
		if c.Claimed.IsZero() {
			continue
		}
		out = append(out, ledger.Entry{
			GSTIN:          gstin,
			Date:           date,
			Type:           ledger.EntryReversal,
			Amount:         c.Claimed,
			Status:         ledger.StatusProvisional,
			Reference:      c.DocumentNumber,
			IdempotencyKey: correctionKey(gstin, "absent", c.DocumentNumber, date),
			Reason:         "reconciliation: claim not in statement",
		})
	}

	return out
}

func correctionKey(gstin, kind, docNo string, date time.Time) string {
	return "recon:" + gstin + ":" + kind + ":" + docNo + ":" + date.UTC().Format("200601")
}

// headMax returns the per-head maximum of two amounts.
func headMax(a, b gst.TaxAmount) gst.TaxAmount {
	out := a
	for _, h := range gst.Heads {
		if b.Head(h).GreaterThan(out.Head(h)) {
			out = out.WithHead(h, b.Head(h))
		}
	}
	return out
}
