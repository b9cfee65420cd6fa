/*
Package gst provides the shared domain types for the reverse-charge engine.

PURPOSE:
  Tax amounts in this system are always split across three heads: IGST
  (inter-state), CGST and SGST (intra-state, half each). Every component -
  the self-invoice generator, the credit ledger, reconciliation and
  utilization - moves TaxAmount values around, so the head-wise arithmetic
  lives here once.

KEY CONCEPTS IN THIS FILE (types.go):
  - Head: One of the three tax heads (IGST/CGST/SGST)
  - TaxAmount: A per-head amount triple with signed arithmetic
  - RoundMoney: The single rounding rule applied at computation boundaries

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money
  2. One rounding rule: round-half-up, applied once per computation
  3. Head-wise operations: balance invariants are checked per head,
     never on the total alone

SEE ALSO:
  - errors.go: Error taxonomy shared by all components
  - period.go: Fiscal year and return period helpers
*/
package gst

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX HEAD
// =============================================================================

// Head identifies one of the three GST tax heads.
type Head string

const (
	HeadIGST Head = "IGST" // Integrated tax, inter-state supply
	HeadCGST Head = "CGST" // Central tax, intra-state supply
	HeadSGST Head = "SGST" // State tax, intra-state supply
)

// Heads lists all tax heads in canonical order.
var Heads = []Head{HeadIGST, HeadCGST, HeadSGST}

// =============================================================================
// TAX AMOUNT - Per-head amount triple
// =============================================================================

// TaxAmount carries an amount for each tax head. Values may be negative:
// a negative head is meaningful for signed adjustment deltas, and the
// ledger rejects any entry whose application would leave a head negative.
type TaxAmount struct {
	IGST decimal.Decimal
	CGST decimal.Decimal
	SGST decimal.Decimal
}

// ZeroTax returns an all-zero TaxAmount.
func ZeroTax() TaxAmount {
	return TaxAmount{IGST: decimal.Zero, CGST: decimal.Zero, SGST: decimal.Zero}
}

// NewTaxAmount builds a TaxAmount from string values. Invalid strings
// become zero; use this for literals in tests and seed data only.
func NewTaxAmount(igst, cgst, sgst string) TaxAmount {
	return TaxAmount{
		IGST: mustDecimal(igst),
		CGST: mustDecimal(cgst),
		SGST: mustDecimal(sgst),
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (t TaxAmount) Add(o TaxAmount) TaxAmount {
	return TaxAmount{IGST: t.IGST.Add(o.IGST), CGST: t.CGST.Add(o.CGST), SGST: t.SGST.Add(o.SGST)}
}

func (t TaxAmount) Sub(o TaxAmount) TaxAmount {
	return TaxAmount{IGST: t.IGST.Sub(o.IGST), CGST: t.CGST.Sub(o.CGST), SGST: t.SGST.Sub(o.SGST)}
}

func (t TaxAmount) Neg() TaxAmount {
	return TaxAmount{IGST: t.IGST.Neg(), CGST: t.CGST.Neg(), SGST: t.SGST.Neg()}
}

// Head returns the amount for a single head.
func (t TaxAmount) Head(h Head) decimal.Decimal {
	switch h {
	case HeadIGST:
		return t.IGST
	case HeadCGST:
		return t.CGST
	case HeadSGST:
		return t.SGST
	}
	return decimal.Zero
}

// WithHead returns a copy with the given head set to v.
func (t TaxAmount) WithHead(h Head, v decimal.Decimal) TaxAmount {
	switch h {
	case HeadIGST:
		t.IGST = v
	case HeadCGST:
		t.CGST = v
	case HeadSGST:
		t.SGST = v
	}
	return t
}

// Total returns the sum across all heads.
func (t TaxAmount) Total() decimal.Decimal {
	return t.IGST.Add(t.CGST).Add(t.SGST)
}

func (t TaxAmount) IsZero() bool {
	return t.IGST.IsZero() && t.CGST.IsZero() && t.SGST.IsZero()
}

// Equal reports exact per-head equality. Reconciliation uses this:
// there is no fuzzy tolerance on matching.
func (t TaxAmount) Equal(o TaxAmount) bool {
	return t.IGST.Equal(o.IGST) && t.CGST.Equal(o.CGST) && t.SGST.Equal(o.SGST)
}

// AnyNegative returns the first head whose amount is negative, if any.
func (t TaxAmount) AnyNegative() (Head, bool) {
	for _, h := range Heads {
		if t.Head(h).IsNegative() {
			return h, true
		}
	}
	return "", false
}

// Abs returns the per-head absolute values.
func (t TaxAmount) Abs() TaxAmount {
	return TaxAmount{IGST: t.IGST.Abs(), CGST: t.CGST.Abs(), SGST: t.SGST.Abs()}
}

// ClampPositive zeroes any negative head.
func (t TaxAmount) ClampPositive() TaxAmount {
	out := t
	for _, h := range Heads {
		if out.Head(h).IsNegative() {
			out = out.WithHead(h, decimal.Zero)
		}
	}
	return out
}

func (t TaxAmount) String() string {
	return fmt.Sprintf("IGST=%s CGST=%s SGST=%s", t.IGST, t.CGST, t.SGST)
}

// =============================================================================
// MONEY ROUNDING
// =============================================================================

// RoundMoney applies the system-wide rounding rule: round-half-up to two
// decimal places. Applied once at each computation boundary (taxable base
// after FX conversion, each tax head, cess) so rounding never compounds.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundUnit rounds to the nearest whole currency unit, half up. Interest
// and penalty amounts are statutorily stated in whole units.
func RoundUnit(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
