/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine only knows these narrow interfaces; the full application
  store (store/sqlite) implements them alongside the rest of the schema
  (members, expenses, announcements, recycle bin, activity log).

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - dues/store: in-memory store for tests
*/
package dues

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT STORE
// =============================================================================

// PaymentFilter narrows a payment listing. Nil fields match everything.
type PaymentFilter struct {
	MemberID *MemberID
	Kind     *PaymentKind
	Year     *int
	Month    *time.Month
}

// PaymentStore is the persistence surface the allocation engine writes
// through. Increment is a single relative update so two concurrent admin
// increments both land; no version check is applied (last-write-wins on
// absolute corrections is accepted behavior).
type PaymentStore interface {
	CreatePayment(ctx context.Context, p Payment) error
	IncrementPaymentAmount(ctx context.Context, id PaymentID, delta decimal.Decimal) error
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error)

	// FindMonthlyPayment returns the first payment covering (member, period),
	// or nil if none exists.
	FindMonthlyPayment(ctx context.Context, memberID MemberID, period Period) (*Payment, error)
}

// =============================================================================
// NOTIFIER - Fire-and-forget side effects
// =============================================================================

// Notifier delivers member-facing notifications. Callers log delivery
// failures and never fail the parent operation on them.
type Notifier interface {
	Notify(ctx context.Context, memberID MemberID, kind, message string) error
}

// NotifyKind values used across the engine and scheduler.
const (
	NotifyPaymentRecorded = "payment_recorded"
	NotifyRequestApproved = "request_approved"
	NotifyRequestRejected = "request_rejected"
	NotifyDuesOverdue     = "dues_overdue"
)
