/*
totals_test.go - Rollups and matrix materialization

Covers the row/column/grand total reductions and BuildMatrix, including
the duplicate-summing and members-without-payments cases.
*/
package dues

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTotals_RowColumnGrand(t *testing.T) {
	// GIVEN: Two members with payments across two months, including a
	// duplicate entry for m1 January
	payments := []Payment{
		pay("m1", 2024, time.January, "100"),
		{ID: "dup", MemberID: "m1", Kind: KindMonthly,
			Amount: decimal.RequireFromString("50"), Period: NewPeriod(2024, time.January)},
		pay("m1", 2024, time.February, "100"),
		pay("m2", 2024, time.January, "100"),
	}
	jan := NewPeriod(2024, time.January)
	feb := NewPeriod(2024, time.February)

	// WHEN/THEN: Cell, row, column, and grand totals all agree
	if got := MemberPeriodTotal(payments, "m1", jan); !got.Equal(decimal.RequireFromString("150")) {
		t.Errorf("m1 Jan: expected 150, got %s", got)
	}
	if got := MemberRowTotal(payments, "m1", []Period{jan, feb}); !got.Equal(decimal.RequireFromString("250")) {
		t.Errorf("m1 row: expected 250, got %s", got)
	}
	if got := PeriodTotal(payments, jan); !got.Equal(decimal.RequireFromString("250")) {
		t.Errorf("Jan column: expected 250, got %s", got)
	}
	if got := GrandTotal(payments, []Period{jan, feb}); !got.Equal(decimal.RequireFromString("350")) {
		t.Errorf("grand: expected 350, got %s", got)
	}
}

func TestTotals_KindTotalSeparatesDonations(t *testing.T) {
	// GIVEN: A monthly payment and a one-time donation
	payments := []Payment{
		pay("m1", 2024, time.January, "100"),
		{ID: "d1", MemberID: "m1", Kind: KindOneTime, Amount: decimal.RequireFromString("500")},
	}

	// WHEN/THEN: Kind totals don't bleed into each other
	if got := KindTotal(payments, KindMonthly); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("monthly: expected 100, got %s", got)
	}
	if got := KindTotal(payments, KindOneTime); !got.Equal(decimal.RequireFromString("500")) {
		t.Errorf("one-time: expected 500, got %s", got)
	}
}

func TestBuildMatrix(t *testing.T) {
	// GIVEN: Config limiting 2024 to Jan-Mar, two members, one of whom
	// has no payments at all
	cfg := CollectionConfig{
		ActiveYears:        []int{2024},
		ActiveMonthsByYear: map[int][]time.Month{2024: {time.January, time.February, time.March}},
	}
	payments := []Payment{
		pay("m1", 2024, time.January, "100"),
		pay("m1", 2024, time.February, "100"),
	}
	today := day(2024, time.March, 5)

	// WHEN: Building the matrix
	m := BuildMatrix(cfg, 2024, []MemberID{"m1", "m2"}, payments, today)

	// THEN: Dimensions follow the active configuration
	if len(m.Periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(m.Periods))
	}
	if len(m.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.Rows))
	}

	// THEN: m1's cells resolve paid/paid/due-soon
	m1 := m.Rows[0]
	wantStatuses := []Status{StatusPaid, StatusPaid, StatusDueSoon}
	for i, want := range wantStatuses {
		if m1.Cells[i].Status != want {
			t.Errorf("m1 cell %d: expected %s, got %s", i, want, m1.Cells[i].Status)
		}
	}
	if !m1.RowTotal.Equal(decimal.RequireFromString("200")) {
		t.Errorf("m1 row total: expected 200, got %s", m1.RowTotal)
	}

	// THEN: The member with no payments still gets a full unpaid row
	m2 := m.Rows[1]
	if len(m2.Cells) != 3 {
		t.Fatalf("m2: expected 3 cells, got %d", len(m2.Cells))
	}
	if !m2.RowTotal.IsZero() {
		t.Errorf("m2 row total: expected 0, got %s", m2.RowTotal)
	}

	// THEN: Column totals and grand total line up
	if !m.PeriodTotals[0].Equal(decimal.RequireFromString("100")) {
		t.Errorf("Jan total: expected 100, got %s", m.PeriodTotals[0])
	}
	if !m.GrandTotal.Equal(decimal.RequireFromString("200")) {
		t.Errorf("grand total: expected 200, got %s", m.GrandTotal)
	}
}

func TestConfig_ActiveMonths(t *testing.T) {
	// GIVEN: 2024 restricted to odd months, 2025 unrestricted, 2023 inactive
	cfg := CollectionConfig{
		ActiveYears:        []int{2024, 2025},
		ActiveMonthsByYear: map[int][]time.Month{2024: {time.May, time.January, time.March}},
	}

	// THEN: Restricted year comes back sorted
	months := cfg.ActiveMonths(2024)
	if len(months) != 3 || months[0] != time.January || months[2] != time.May {
		t.Errorf("expected sorted [1 3 5], got %v", months)
	}

	// THEN: Unrestricted active year defaults to all twelve
	if got := cfg.ActiveMonths(2025); len(got) != 12 {
		t.Errorf("expected 12 months for 2025, got %d", len(got))
	}

	// THEN: Inactive year has no months at all
	if got := cfg.ActiveMonths(2023); got != nil {
		t.Errorf("expected nil for inactive year, got %v", got)
	}

	// THEN: The gate agrees
	if cfg.IsActive(NewPeriod(2024, time.February)) {
		t.Error("February 2024 should be inactive")
	}
	if !cfg.IsActive(NewPeriod(2024, time.March)) {
		t.Error("March 2024 should be active")
	}
}

func TestParseAmount(t *testing.T) {
	// Blank input is distinct from malformed input.
	if _, err := ParseAmount("   "); err != ErrBlankAmount {
		t.Errorf("blank: expected ErrBlankAmount, got %v", err)
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Error("non-numeric: expected error")
	}
	if _, err := ParseAmount("-5"); err == nil {
		t.Error("negative: expected error")
	}
	got, err := ParseAmount(" 12.50 ")
	if err != nil {
		t.Fatalf("valid input: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected 12.5, got %s", got)
	}
}
