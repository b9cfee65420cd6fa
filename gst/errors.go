/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error kinds in one place. Component packages wrap these with
  additional context but never invent new categories.

ERROR CATEGORIES:
  1. Validation errors   - malformed or missing input
  2. Compliance errors   - a statutory rule was broken
  3. Balance errors      - the ledger invariant would be violated
  4. Not-found errors    - a referenced rule or entry is absent

CONTRACT:
  Validation and compliance errors are returned synchronously from the
  call that detects them and are surfaced to the caller unmodified.
  They are never downgraded to warnings. Reconciliation mismatches are
  NOT errors - they are structured data in the result.

USAGE:
  Check category with errors.Is():

    if errors.Is(err, gst.ErrInsufficientBalance) {
        var ib *gst.InsufficientBalanceError
        errors.As(err, &ib) // head, shortfall
    }
*/
package gst

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category for malformed or missing input:
	// invalid dates, non-positive amounts, badly-formed codes.
	ErrValidation = errors.New("validation failed")

	// ErrComplianceViolation is the category for broken statutory rules:
	// time limit exceeded, blocked credit claimed.
	ErrComplianceViolation = errors.New("compliance violation")

	// ErrInsufficientBalance is returned when applying a ledger entry
	// would drive a tax head's balance negative.
	ErrInsufficientBalance = errors.New("insufficient credit balance")

	// ErrNotFound is returned when a referenced rule or ledger entry
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReference is returned when an idempotency key has
	// already been used. Expected behavior for queue retries.
	ErrDuplicateReference = errors.New("duplicate reference")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for a field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ComplianceViolationError describes a broken statutory rule.
type ComplianceViolationError struct {
	Code    string // e.g. "TIME_LIMIT_EXCEEDED", "CLAIMED_BLOCKED_ITC"
	Message string
}

func (e *ComplianceViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ComplianceViolationError) Unwrap() error { return ErrComplianceViolation }

// InsufficientBalanceError identifies the offending head and shortfall
// when a ledger entry is rejected. The ledger is left unmodified.
type InsufficientBalanceError struct {
	GSTIN     string
	Head      Head
	Available decimal.Decimal
	Requested decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s, shortfall %s",
		e.Head, e.GSTIN, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrComplianceViolation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateReference)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
