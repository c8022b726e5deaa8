/*
totals.go - Scalar rollups over the payment collection

PURPOSE:
  Computes the row, column, and grand totals displayed around the
  collection matrix, and materializes the matrix itself (member rows x
  active periods, each cell resolved through status.go).

  All functions are pure reductions. Amounts are decimals by the time
  they reach this file (parsed at the API boundary), so the only
  defensiveness needed is skipping rows that don't match.
*/
package dues

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOTALS AGGREGATOR
// =============================================================================

// MemberPeriodTotal sums all monthly payments matching member+period.
func MemberPeriodTotal(payments []Payment, memberID MemberID, period Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.IsMonthlyFor(memberID, period) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// PeriodTotal sums all monthly payments matching the period across members.
func PeriodTotal(payments []Payment, period Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Kind == KindMonthly && p.Period.Valid() && p.Period == period {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// MemberRowTotal sums MemberPeriodTotal over the given periods.
func MemberRowTotal(payments []Payment, memberID MemberID, periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, period := range periods {
		total = total.Add(MemberPeriodTotal(payments, memberID, period))
	}
	return total
}

// GrandTotal sums PeriodTotal over the given periods.
func GrandTotal(payments []Payment, periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, period := range periods {
		total = total.Add(PeriodTotal(payments, period))
	}
	return total
}

// KindTotal sums all payments of a kind regardless of period. Used by the
// finance dashboard (monthly collections vs. one-time donations).
func KindTotal(payments []Payment, kind PaymentKind) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Kind == kind {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// =============================================================================
// COLLECTION MATRIX
// =============================================================================

// MatrixRow is one member's row: a resolved cell per active period plus
// the row total.
type MatrixRow struct {
	MemberID MemberID
	Cells    []PeriodStatus
	RowTotal decimal.Decimal
}

// Matrix is the full collection view for one year.
type Matrix struct {
	Year         int
	Periods      []Period
	Rows         []MatrixRow
	PeriodTotals []decimal.Decimal
	GrandTotal   decimal.Decimal
}

// BuildMatrix resolves every member/period cell for the year's active
// periods. Members with no payments still get a row (all unpaid states).
func BuildMatrix(cfg CollectionConfig, year int, memberIDs []MemberID, payments []Payment, today time.Time) Matrix {
	periods := cfg.ActivePeriods(year)

	m := Matrix{
		Year:         year,
		Periods:      periods,
		Rows:         make([]MatrixRow, 0, len(memberIDs)),
		PeriodTotals: make([]decimal.Decimal, len(periods)),
		GrandTotal:   decimal.Zero,
	}
	for i := range m.PeriodTotals {
		m.PeriodTotals[i] = decimal.Zero
	}

	for _, id := range memberIDs {
		row := MatrixRow{
			MemberID: id,
			Cells:    make([]PeriodStatus, 0, len(periods)),
			RowTotal: decimal.Zero,
		}
		for i, period := range periods {
			cell := ResolveStatus(payments, id, period, today)
			row.Cells = append(row.Cells, cell)
			row.RowTotal = row.RowTotal.Add(cell.Paid)
			m.PeriodTotals[i] = m.PeriodTotals[i].Add(cell.Paid)
		}
		m.GrandTotal = m.GrandTotal.Add(row.RowTotal)
		m.Rows = append(m.Rows, row)
	}
	return m
}
