/*
Package utilization applies input tax credit against a period's output
liability in the prescribed cross-head order.

ORDER (fixed statutory rule, not configurable):
  1. IGST credit against IGST liability
  2. remaining IGST credit against CGST liability
  3. remaining IGST credit against SGST liability
  4. CGST credit against CGST liability only
  5. SGST credit against SGST liability only

CGST and SGST credits never offset each other's head, nor IGST. Whatever
liability survives the applicable credit becomes the cash requirement.
*/
package utilization

import (
	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// Result reports how credit was consumed against a liability.
type Result struct {
	// Used is the credit consumed, by the head the credit came from.
	Used gst.TaxAmount

	// RemainingITC is the credit left per head after allocation.
	RemainingITC gst.TaxAmount

	// CashRequired is the liability per head not covered by credit.
	CashRequired gst.TaxAmount

	// CashTotal is the single cash figure the period owes.
	CashTotal decimal.Decimal
}

// Allocate consumes available credit against the liability in the
// prescribed order. Negative inputs are rejected: balances come from the
// ledger (never negative by invariant) and liabilities from the return.
func Allocate(available, liability gst.TaxAmount) (Result, error) {
	if head, neg := available.AnyNegative(); neg {
		return Result{}, gst.Invalid("available."+string(head), "must not be negative")
	}
	if head, neg := liability.AnyNegative(); neg {
		return Result{}, gst.Invalid("liability."+string(head), "must not be negative")
	}

	var (
		igstCredit = available.IGST
		used       = gst.ZeroTax()
		cash       = gst.ZeroTax()
	)

	// 1. IGST credit against IGST liability.
	take := decimal.Min(igstCredit, liability.IGST)
	igstCredit = igstCredit.Sub(take)
	used.IGST = used.IGST.Add(take)
	cash.IGST = liability.IGST.Sub(take)

	// 2-3. Remaining IGST credit cross-head: CGST first, then SGST.
	igstForCGST := decimal.Min(igstCredit, liability.CGST)
	igstCredit = igstCredit.Sub(igstForCGST)
	used.IGST = used.IGST.Add(igstForCGST)

	igstForSGST := decimal.Min(igstCredit, liability.SGST)
	igstCredit = igstCredit.Sub(igstForSGST)
	used.IGST = used.IGST.Add(igstForSGST)

	// 4. CGST credit against its own head's remainder.
	cgstLeft := liability.CGST.Sub(igstForCGST)
	cgstUsed := decimal.Min(available.CGST, cgstLeft)
	used.CGST = cgstUsed
	cash.CGST = cgstLeft.Sub(cgstUsed)

	// 5. SGST credit against its own head's remainder.
	sgstLeft := liability.SGST.Sub(igstForSGST)
	sgstUsed := decimal.Min(available.SGST, sgstLeft)
	used.SGST = sgstUsed
	cash.SGST = sgstLeft.Sub(sgstUsed)

	remaining := gst.TaxAmount{
		IGST: igstCredit,
		CGST: available.CGST.Sub(cgstUsed),
		SGST: available.SGST.Sub(sgstUsed),
	}

	return Result{
		Used:         used,
		RemainingITC: remaining,
		CashRequired: cash,
		CashTotal:    cash.Total(),
	}, nil
}
