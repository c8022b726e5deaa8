/*
errors.go - Centralized error types for the dues engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - raised BEFORE any mutation; fully recoverable
  2. Not-found errors - missing members/payments/requests
  3. Store errors - opaque passthrough from the persistence layer

PROPAGATION POLICY:
  Validation errors guarantee zero writes. Once the validation gate has
  passed, each per-period write is independent: a store failure partway
  through leaves earlier writes committed, and CommitResult reports which
  periods succeeded and which failed. Notification side-effect failures
  are logged, never propagated.

USAGE:
  if errors.Is(err, dues.ErrAllocationExceedsTotal) { ... }

  var inactive *dues.InactivePeriodError
  if errors.As(err, &inactive) { ... inactive.Period ... }
*/
package dues

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoPeriodSelected is returned when an allocation is requested with
	// an empty period set.
	ErrNoPeriodSelected = errors.New("no period selected")

	// ErrAllocationExceedsTotal is returned when the per-period allocations
	// sum to more than the declared total beyond the rounding tolerance.
	ErrAllocationExceedsTotal = errors.New("allocation exceeds declared total")

	// ErrInactivePeriod is returned when a selected period is not in the
	// active collection configuration.
	ErrInactivePeriod = errors.New("period is not active")

	// ErrBlankAmount is returned by ParseAmount for empty input. Callers
	// treat blank allocation fields as "not entered", not as zero.
	ErrBlankAmount = errors.New("blank amount")

	// ErrInvalidAmount is returned for non-numeric or negative amount input.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrRequestNotFound is returned when a donation request doesn't exist.
	ErrRequestNotFound = errors.New("donation request not found")

	// ErrRequestNotPending is returned when approving or rejecting a request
	// that has already been decided.
	ErrRequestNotPending = errors.New("donation request is not pending")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AllocationExceedsTotalError details an over-allocation.
type AllocationExceedsTotalError struct {
	Total     decimal.Decimal
	Allocated decimal.Decimal
}

func (e *AllocationExceedsTotalError) Error() string {
	return fmt.Sprintf("allocation exceeds declared total: allocated %s, declared %s",
		e.Allocated.String(), e.Total.String())
}

func (e *AllocationExceedsTotalError) Unwrap() error { return ErrAllocationExceedsTotal }

// InactivePeriodError identifies which selected period is outside the
// active configuration.
type InactivePeriodError struct {
	Period Period
}

func (e *InactivePeriodError) Error() string {
	return fmt.Sprintf("period %s is not active in the collection configuration", e.Period)
}

func (e *InactivePeriodError) Unwrap() error { return ErrInactivePeriod }

// InvalidAmountError reports unparseable amount input.
type InvalidAmountError struct {
	Input string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q", e.Input)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoPeriodSelected) ||
		errors.Is(err, ErrAllocationExceedsTotal) ||
		errors.Is(err, ErrInactivePeriod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrBlankAmount) ||
		errors.Is(err, ErrRequestNotPending)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
