/*
Package compliance computes the statutory deadlines and charges for
reverse-charge documents.

PURPOSE:
  A reverse-charge transaction must be compensated by a self-invoice
  within 30 days of receipt, and the self-assessed tax is due by the 20th
  of the month following the receipt month. This package computes those
  deadlines, classifies how late a document is, and prices the lateness
  (prorated interest plus a flat penalty).

KEY CONCEPTS:
  - Due date: 20th of the month after the receipt month
  - Overdue bands: MINOR (1-30 days), MAJOR (31-90), CRITICAL (>90)
  - Warning levels: HIGH/CRITICAL as the 30-day self-invoice window closes
  - Interest: principal x rate/100 x days/365, rounded to the whole unit
  - Late fee: flat amount on top of interest, never compounded with it

All functions are pure. The Timer carries configuration only; it is safe
for concurrent use.
*/
package compliance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the statutory parameters. Zero values fall back to the
// defaults below.
type Config struct {
	// SelfInvoiceWindowDays is the statutory window for issuing a
	// compensating self-invoice after receipt.
	SelfInvoiceWindowDays int

	// MaxFutureDays bounds how far in the future a receipt date may
	// plausibly be before it is rejected as invalid.
	MaxFutureDays int

	// AnnualInterestRate is the default interest rate (percent per annum)
	// for late payment.
	AnnualInterestRate decimal.Decimal

	// LateFee is the flat minimum penalty added when a document is
	// issued outside the self-invoice window.
	LateFee decimal.Decimal

	// Now supplies the current time; overridable in tests.
	Now func() time.Time
}

const (
	DefaultSelfInvoiceWindowDays = 30
	DefaultMaxFutureDays         = 365
)

var (
	DefaultAnnualInterestRate = decimal.NewFromInt(18)
	DefaultLateFee            = decimal.NewFromInt(5000)
)

// Timer computes due dates, overdue classification and late charges.
type Timer struct {
	cfg Config
}

// NewTimer builds a Timer, filling unset config fields with defaults.
func NewTimer(cfg Config) *Timer {
	if cfg.SelfInvoiceWindowDays == 0 {
		cfg.SelfInvoiceWindowDays = DefaultSelfInvoiceWindowDays
	}
	if cfg.MaxFutureDays == 0 {
		cfg.MaxFutureDays = DefaultMaxFutureDays
	}
	if cfg.AnnualInterestRate.IsZero() {
		cfg.AnnualInterestRate = DefaultAnnualInterestRate
	}
	if cfg.LateFee.IsZero() {
		cfg.LateFee = DefaultLateFee
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Timer{cfg: cfg}
}

// WindowDays returns the configured self-invoice window.
func (t *Timer) WindowDays() int { return t.cfg.SelfInvoiceWindowDays }

// =============================================================================
// DUE DATE
// =============================================================================

// DueDate returns the statutory payment due date for a receipt: the 20th
// of the calendar month immediately following the receipt month, with
// December rolling over into January of the next year.
//
// Rejects zero dates, dates before the GST regime existed, and dates
// implausibly far in the future.
func (t *Timer) DueDate(receipt time.Time) (time.Time, error) {
	if err := t.validateReceiptDate(receipt); err != nil {
		return time.Time{}, err
	}
	year, month := receipt.Year(), receipt.Month()
	if month == time.December {
		year, month = year+1, time.January
	} else {
		month++
	}
	return time.Date(year, month, 20, 0, 0, 0, 0, time.UTC), nil
}

func (t *Timer) validateReceiptDate(receipt time.Time) error {
	if receipt.IsZero() {
		return gst.Invalid("receiptDate", "must not be zero")
	}
	gstEpoch := time.Date(2017, time.July, 1, 0, 0, 0, 0, time.UTC)
	if receipt.Before(gstEpoch) {
		return gst.Invalid("receiptDate", "precedes the GST regime")
	}
	ceiling := t.cfg.Now().AddDate(0, 0, t.cfg.MaxFutureDays)
	if receipt.After(ceiling) {
		return gst.Invalid("receiptDate",
			fmt.Sprintf("more than %d days in the future", t.cfg.MaxFutureDays))
	}
	return nil
}

// =============================================================================
// OVERDUE CLASSIFICATION
// =============================================================================

// OverdueCategory bands how late a payment is.
type OverdueCategory string

const (
	NotOverdue      OverdueCategory = "NOT_OVERDUE" // daysPastDue <= 0
	OverdueMinor    OverdueCategory = "MINOR"       // 1-30 days
	OverdueMajor    OverdueCategory = "MAJOR"       // 31-90 days
	OverdueCritical OverdueCategory = "CRITICAL"    // >90 days
)

// OverdueStatus describes lateness relative to a due date.
type OverdueStatus struct {
	IsOverdue   bool
	DaysPastDue int
	Category    OverdueCategory
}

// Overdue classifies now against a due date. On the due date itself the
// payment is not yet overdue.
func (t *Timer) Overdue(dueDate, now time.Time) OverdueStatus {
	days := gst.DaysBetween(dueDate, now)
	status := OverdueStatus{DaysPastDue: days}
	switch {
	case days <= 0:
		status.DaysPastDue = 0
		status.Category = NotOverdue
	case days <= 30:
		status.IsOverdue = true
		status.Category = OverdueMinor
	case days <= 90:
		status.IsOverdue = true
		status.Category = OverdueMajor
	default:
		status.IsOverdue = true
		status.Category = OverdueCritical
	}
	return status
}

// WarningLevel flags a not-yet-lapsed self-invoice window that is about
// to close.
type WarningLevel string

const (
	WarningNone     WarningLevel = "NONE"
	WarningHigh     WarningLevel = "HIGH"     // <=5 days remaining
	WarningCritical WarningLevel = "CRITICAL" // <=2 days remaining
)

// WindowWarning returns the warning level for a receipt whose self-invoice
// window is still open. Once the window has lapsed the overdue bands
// apply instead and the warning is NONE.
func (t *Timer) WindowWarning(receipt, now time.Time) WarningLevel {
	remaining := t.cfg.SelfInvoiceWindowDays - gst.DaysBetween(receipt, now)
	switch {
	case remaining < 0:
		return WarningNone
	case remaining <= 2:
		return WarningCritical
	case remaining <= 5:
		return WarningHigh
	default:
		return WarningNone
	}
}

// =============================================================================
// INTEREST AND PENALTY
// =============================================================================

// Interest computes simple prorated interest on a late payment:
// principal x annualRatePercent/100 x daysOverdue/365, rounded half-up
// to the nearest whole unit. Zero for daysOverdue <= 0.
func (t *Timer) Interest(principal decimal.Decimal, daysOverdue int, annualRatePercent decimal.Decimal) (decimal.Decimal, error) {
	if principal.IsNegative() {
		return decimal.Zero, gst.Invalid("principal", "must not be negative")
	}
	if daysOverdue < 0 {
		return decimal.Zero, gst.Invalid("daysOverdue", "must not be negative")
	}
	if !annualRatePercent.IsPositive() {
		return decimal.Zero, gst.Invalid("annualRatePercent", "must be positive")
	}
	if daysOverdue == 0 {
		return decimal.Zero, nil
	}
	interest := principal.
		Mul(annualRatePercent).Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(daysOverdue))).Div(decimal.NewFromInt(365))
	return gst.RoundUnit(interest), nil
}

// LateCharge prices a self-invoice issued daysLate days after receipt:
// prorated interest on the tax amount past the statutory window, plus the
// flat penalty if the window was missed at all. The two are summed, never
// compounded.
type LateCharge struct {
	Interest decimal.Decimal
	Penalty  decimal.Decimal
	Total    decimal.Decimal
}

// ChargeForLateIssue computes the late charge for a document issued
// outside the self-invoice window. daysLate counts from receipt, so only
// the days beyond the window accrue interest.
func (t *Timer) ChargeForLateIssue(taxAmount decimal.Decimal, daysLate int) (LateCharge, error) {
	if taxAmount.IsNegative() {
		return LateCharge{}, gst.Invalid("taxAmount", "must not be negative")
	}
	if daysLate < 0 {
		return LateCharge{}, gst.Invalid("daysLate", "must not be negative")
	}

	overdueDays := daysLate - t.cfg.SelfInvoiceWindowDays
	if overdueDays <= 0 {
		return LateCharge{Interest: decimal.Zero, Penalty: decimal.Zero, Total: decimal.Zero}, nil
	}

	interest, err := t.Interest(taxAmount, overdueDays, t.cfg.AnnualInterestRate)
	if err != nil {
		return LateCharge{}, err
	}
	total := interest.Add(t.cfg.LateFee)
	return LateCharge{Interest: interest, Penalty: t.cfg.LateFee, Total: total}, nil
}
