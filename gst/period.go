package gst

import (
	"fmt"
	"time"
)

// =============================================================================
// FISCAL YEAR - April to March
// =============================================================================

// FiscalYear is identified by its starting calendar year. FY 2024 runs
// 2024-04-01 through 2025-03-31.
type FiscalYear int

// FiscalYearOf returns the fiscal year containing the given date.
func FiscalYearOf(date time.Time) FiscalYear {
	if date.Month() >= time.April {
		return FiscalYear(date.Year())
	}
	return FiscalYear(date.Year() - 1)
}

// Start returns the first day of the fiscal year.
func (fy FiscalYear) Start() time.Time {
	return time.Date(int(fy), time.April, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the fiscal year.
func (fy FiscalYear) End() time.Time {
	return time.Date(int(fy)+1, time.March, 31, 0, 0, 0, 0, time.UTC)
}

// Label renders the short form used in document numbers: FY 2024 -> "24-25".
func (fy FiscalYear) Label() string {
	return fmt.Sprintf("%02d-%02d", int(fy)%100, (int(fy)+1)%100)
}

// =============================================================================
// RETURN PERIOD - One calendar month of GST filings
// =============================================================================

// ReturnPeriod identifies a monthly return period. The GSTR-2B statement
// and the claimed entries it is reconciled against are both scoped to one
// return period.
type ReturnPeriod struct {
	Month time.Month
	Year  int
}

// PeriodOf returns the return period containing the given date.
func PeriodOf(date time.Time) ReturnPeriod {
	return ReturnPeriod{Month: date.Month(), Year: date.Year()}
}

// ParsePeriod parses the GSTN wire form "MMYYYY" (e.g. "042024").
func ParsePeriod(s string) (ReturnPeriod, error) {
	if len(s) != 6 {
		return ReturnPeriod{}, Invalid("period", "expected MMYYYY")
	}
	var m, y int
	if _, err := fmt.Sscanf(s, "%02d%04d", &m, &y); err != nil || m < 1 || m > 12 {
		return ReturnPeriod{}, Invalid("period", "expected MMYYYY")
	}
	return ReturnPeriod{Month: time.Month(m), Year: y}, nil
}

// Start returns the first day of the period.
func (p ReturnPeriod) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period.
func (p ReturnPeriod) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Next returns the following return period.
func (p ReturnPeriod) Next() ReturnPeriod {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Contains reports whether the date falls inside the period.
func (p ReturnPeriod) Contains(date time.Time) bool {
	return date.Year() == p.Year && date.Month() == p.Month
}

// String renders the GSTN wire form "MMYYYY".
func (p ReturnPeriod) String() string {
	return fmt.Sprintf("%02d%04d", int(p.Month), p.Year)
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// DaysBetween returns whole days from a to b, ignoring time-of-day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
