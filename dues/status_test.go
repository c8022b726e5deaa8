/*
status_test.go - Specification tests for the period status resolver

PURPOSE:
  These tests serve as EXECUTABLE SPECIFICATIONS of the status rules.
  Each test documents one precedence rule or boundary:
  1. Paid beats everything, duplicates are summed
  2. Future / past classification relative to "today"
  3. The 10-day grace boundary: day 10 is due-soon, day 11 is overdue

READING THESE TESTS:
  Each test has GIVEN/WHEN/THEN comments explaining the scenario.
*/
package dues

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pay(member string, year int, month time.Month, amount string) Payment {
	return Payment{
		ID:       PaymentID("p-" + member + "-" + NewPeriod(year, month).String()),
		MemberID: MemberID(member),
		Kind:     KindMonthly,
		Amount:   decimal.RequireFromString(amount),
		Period:   NewPeriod(year, month),
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

// =============================================================================
// PRECEDENCE: PAID
// =============================================================================

func TestStatus_PaidBeatsOverdue(t *testing.T) {
	// GIVEN: A payment covering a month far in the past
	payments := []Payment{pay("m1", 2024, time.January, "100")}

	// WHEN: Resolving that month long after it ended
	got := ResolveStatus(payments, "m1", NewPeriod(2024, time.January), day(2024, time.November, 20))

	// THEN: The cell is paid, not overdue
	if got.Status != StatusPaid {
		t.Errorf("expected paid, got %s", got.Status)
	}
	if !got.Paid.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected paid amount 100, got %s", got.Paid)
	}
}

func TestStatus_PaidBeatsFuture(t *testing.T) {
	// GIVEN: A payment recorded ahead of time for a future month
	payments := []Payment{pay("m1", 2024, time.December, "100")}

	// WHEN: Resolving December while it is still March
	got := ResolveStatus(payments, "m1", NewPeriod(2024, time.December), day(2024, time.March, 5))

	// THEN: Prepaid months show as paid, not future
	if got.Status != StatusPaid {
		t.Errorf("expected paid, got %s", got.Status)
	}
}

func TestStatus_DuplicatePaymentsAreSummed(t *testing.T) {
	// GIVEN: Two payment records for the same member and month
	payments := []Payment{
		pay("m1", 2024, time.March, "60"),
		{
			ID:       "p-dup",
			MemberID: "m1",
			Kind:     KindMonthly,
			Amount:   decimal.RequireFromString("40"),
			Period:   NewPeriod(2024, time.March),
		},
	}

	// WHEN: Resolving the month
	got := ResolveStatus(payments, "m1", NewPeriod(2024, time.March), day(2024, time.June, 1))

	// THEN: Both records are summed into one visible total, never overwritten
	if got.Status != StatusPaid {
		t.Errorf("expected paid, got %s", got.Status)
	}
	if !got.Paid.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected summed amount 100, got %s", got.Paid)
	}
	if got.Payments != 2 {
		t.Errorf("expected 2 backing payments, got %d", got.Payments)
	}
}

func TestStatus_OtherMembersPaymentsDoNotCount(t *testing.T) {
	// GIVEN: Only another member paid for the month
	payments := []Payment{pay("m2", 2024, time.March, "100")}

	// WHEN: Resolving the month for m1
	got := ResolveStatus(payments, "m1", NewPeriod(2024, time.March), day(2024, time.June, 1))

	// THEN: m1 is still overdue
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}
}

func TestStatus_OneTimePaymentsDoNotCount(t *testing.T) {
	// GIVEN: A one-time donation with no period
	payments := []Payment{{
		ID:       "d1",
		MemberID: "m1",
		Kind:     KindOneTime,
		Amount:   decimal.RequireFromString("500"),
	}}

	// WHEN: Resolving any monthly cell
	got := ResolveStatus(payments, "m1", NewPeriod(2024, time.March), day(2024, time.June, 1))

	// THEN: Donations never satisfy monthly dues
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}
}

// =============================================================================
// UNPAID CLASSIFICATION
// =============================================================================

func TestStatus_FuturePeriod(t *testing.T) {
	// GIVEN: No payments
	// WHEN: Resolving a month after the current one
	got := ResolveStatus(nil, "m1", NewPeriod(2024, time.August), day(2024, time.March, 5))

	// THEN: The cell is future
	if got.Status != StatusFuture {
		t.Errorf("expected future, got %s", got.Status)
	}
}

func TestStatus_PastPeriodIsOverdueRegardlessOfDay(t *testing.T) {
	// GIVEN: No payments, today is early in the month (inside grace for the
	// CURRENT month)
	// WHEN: Resolving the PREVIOUS month
	got := ResolveStatus(nil, "m1", NewPeriod(2024, time.February), day(2024, time.March, 3))

	// THEN: The grace window never applies to past months
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}
}

func TestStatus_GraceBoundary(t *testing.T) {
	period := NewPeriod(2024, time.March)

	// GIVEN: No payment for the current month
	// WHEN: Today is day 10 (last day of grace)
	got := ResolveStatus(nil, "m1", period, day(2024, time.March, 10))
	// THEN: Still due-soon
	if got.Status != StatusDueSoon {
		t.Errorf("day 10: expected due-soon, got %s", got.Status)
	}

	// WHEN: Today is day 11 (grace elapsed)
	got = ResolveStatus(nil, "m1", period, day(2024, time.March, 11))
	// THEN: Overdue
	if got.Status != StatusOverdue {
		t.Errorf("day 11: expected overdue, got %s", got.Status)
	}

	// WHEN: Today is day 1
	got = ResolveStatus(nil, "m1", period, day(2024, time.March, 1))
	// THEN: Due-soon from the first day of the month
	if got.Status != StatusDueSoon {
		t.Errorf("day 1: expected due-soon, got %s", got.Status)
	}
}

func TestStatus_YearBoundary(t *testing.T) {
	// GIVEN: Today is January 2025
	today := day(2025, time.January, 5)

	// WHEN: Resolving December 2024 and February 2025
	past := ResolveStatus(nil, "m1", NewPeriod(2024, time.December), today)
	future := ResolveStatus(nil, "m1", NewPeriod(2025, time.February), today)

	// THEN: Ordering compares year before month
	if past.Status != StatusOverdue {
		t.Errorf("Dec 2024: expected overdue, got %s", past.Status)
	}
	if future.Status != StatusFuture {
		t.Errorf("Feb 2025: expected future, got %s", future.Status)
	}
}
