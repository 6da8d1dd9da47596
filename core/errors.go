/*
errors.go - Centralized error types for the salon engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Not-found errors - Referenced client/employee/bonus absent
  2. Validation errors - Bad input, rejected before any write
  3. Store errors - Idempotency conflicts, transaction failures

USAGE:
  if errors.Is(err, core.ErrEmployeeNotFound) {
      ...
  }

SEE ALSO:
  - store.go: Store operations returning these errors
  - commission/settlement.go: Payment-path usage
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't
	// exist. Commission snapshotting degrades to rate 0 instead of
	// returning this; redemption and payment paths surface it.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrBonusNotFound is returned when a referenced bonus doesn't exist.
	ErrBonusNotFound = errors.New("bonus not found")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrAppointmentNotFound is returned when a referenced appointment
	// doesn't exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrBonusNotRedeemable is returned when redemption is attempted on a
	// bonus whose stored state is Expired. Redeeming an already-redeemed
	// bonus is NOT an error; it is an idempotent no-op.
	ErrBonusNotRedeemable = errors.New("bonus is not redeemable")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a multi-record write cannot be
	// committed.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError rejects malformed input before any write happens.
// The message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// InvalidRateError reports a commission percentage outside [0, 100].
type InvalidRateError struct {
	Rate decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("commission rate %s outside [0, 100]", e.Rate)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrBonusNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrAppointmentNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than a store failure.
func IsClientError(err error) bool {
	var vErr *ValidationError
	var rErr *InvalidRateError
	return errors.As(err, &vErr) ||
		errors.As(err, &rErr) ||
		errors.Is(err, ErrBonusNotRedeemable) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// ValidRate reports whether a commission percentage lies in [0, 100].
func ValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(100))
}
