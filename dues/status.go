/*
status.go - Period status resolver

PURPOSE:
  Classifies one member/period cell of the collection matrix:
  paid, future, overdue, or due-soon. This runs per-cell over a
  potentially large matrix, so it is a pure function with no I/O and
  no panics on malformed rows.

PRECEDENCE (first match wins):
  1. paid      - any payment exists for (member, period); duplicates summed
  2. future    - period after the current month
  3. overdue   - period before the current month
  4. due-soon  - current month, today's day-of-month <= 10 (grace window)
  5. overdue   - current month, day-of-month > 10 (grace elapsed)

The 10-day grace window is a business rule distinguishing "not yet late"
from "late", independent of whether a payment exists. Day 10 inclusive is
still grace; day 11 is overdue.
*/
package dues

import (
	"time"

	"github.com/shopspring/decimal"
)

// GraceDays is the day-of-month through which an unpaid current-month
// period is due-soon rather than overdue.
const GraceDays = 10

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPaid    Status = "paid"
	StatusDueSoon Status = "due-soon"
	StatusOverdue Status = "overdue"
	StatusFuture  Status = "future"
)

// PeriodStatus is the resolved state of one member/period cell.
type PeriodStatus struct {
	Period Period
	Status Status

	// Paid is the summed amount of all matching payments. Zero unless paid.
	Paid decimal.Decimal

	// Payments is how many records back the Paid amount (>1 means
	// duplicate entries were merged into one visible total).
	Payments int
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveStatus classifies a period for one member given that member's
// monthly payments and an injectable "today".
func ResolveStatus(payments []Payment, memberID MemberID, period Period, today time.Time) PeriodStatus {
	result := PeriodStatus{Period: period, Paid: decimal.Zero}

	for _, p := range payments {
		if p.IsMonthlyFor(memberID, period) {
			result.Paid = result.Paid.Add(p.Amount)
			result.Payments++
		}
	}
	if result.Payments > 0 {
		result.Status = StatusPaid
		return result
	}

	current := PeriodOf(today)
	switch {
	case period.After(current):
		result.Status = StatusFuture
	case period.Before(current):
		result.Status = StatusOverdue
	case today.Day() <= GraceDays:
		result.Status = StatusDueSoon
	default:
		result.Status = StatusOverdue
	}
	return result
}

// IsPaid reports whether any payment covers (member, period).
func IsPaid(payments []Payment, memberID MemberID, period Period) bool {
	for _, p := range payments {
		if p.IsMonthlyFor(memberID, period) {
			return true
		}
	}
	return false
}
