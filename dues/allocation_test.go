/*
allocation_test.go - Allocation engine: planning and commit

Covers the resolution order (single month, even split, manual as given),
the over-allocation gate, already-paid warnings, the fill-last-blank
affordance, and the per-period independent commit including partial
store failure.
*/
package dues_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangdhanu/fundkeeper/dues"
	"github.com/rangdhanu/fundkeeper/dues/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func allYearConfig(year int) dues.CollectionConfig {
	return dues.DefaultConfig(year)
}

// =============================================================================
// PLANNING - RESOLUTION ORDER
// =============================================================================

func TestPlan_SingleMonthGetsFullTotal(t *testing.T) {
	// A single selected month takes 100% of the total; manual input for
	// that month is ignored.
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1200"),
		Months:   []time.Month{time.March},
		Manual:   map[time.Month]decimal.Decimal{time.March: dec("5")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.True(t, plan.Lines[0].Amount.Equal(dec("1200")),
		"single month gets the full total, manual ignored; got %s", plan.Lines[0].Amount)
	assert.True(t, plan.Unallocated.IsZero())
}

func TestPlan_EvenSplitWhenNoManual(t *testing.T) {
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1200"),
		Months:   []time.Month{time.January, time.February, time.March},
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 3)
	for _, line := range plan.Lines {
		assert.True(t, line.Amount.Equal(dec("400")), "expected 400, got %s", line.Amount)
	}
}

func TestPlan_EvenSplitNonTerminating(t *testing.T) {
	// 100 / 3 does not terminate. The equal division is taken as-is and
	// the residual stays inside the tolerance instead of erroring.
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("100"),
		Months:   []time.Month{time.January, time.February, time.March},
	}, nil)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, line := range plan.Lines {
		sum = sum.Add(line.Amount)
	}
	diff := dec("100").Sub(sum).Abs()
	assert.True(t, diff.LessThanOrEqual(dec("0.000001")),
		"split sum %s should be within 1e-6 of the total", sum)
}

func TestPlan_ManualAmountsAsGiven(t *testing.T) {
	// Mixed manual input: entered months keep their values, blank months
	// get zero, and the shortfall is surfaced as Unallocated.
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1000"),
		Months:   []time.Month{time.January, time.February, time.March},
		Manual: map[time.Month]decimal.Decimal{
			time.January:  dec("500"),
			time.February: dec("300"),
		},
	}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Lines[0].Amount.Equal(dec("500")))
	assert.True(t, plan.Lines[1].Amount.Equal(dec("300")))
	assert.True(t, plan.Lines[2].Amount.IsZero(), "blank month resolves to zero")
	assert.True(t, plan.Unallocated.Equal(dec("200")),
		"under-allocation is a warning, not an error; got %s", plan.Unallocated)
}

func TestPlan_MonthsDedupedAndSorted(t *testing.T) {
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("300"),
		Months:   []time.Month{time.March, time.January, time.March, time.January},
	}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, time.January, plan.Lines[0].Period.Month)
	assert.Equal(t, time.March, plan.Lines[1].Period.Month)
}

// =============================================================================
// PLANNING - VALIDATION GATE
// =============================================================================

func TestPlan_NoMonthsSelected(t *testing.T) {
	_, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1", Year: 2024, Total: dec("100"),
	}, nil)
	assert.ErrorIs(t, err, dues.ErrNoPeriodSelected)
}

func TestPlan_OverAllocationRejected(t *testing.T) {
	// Declared 1000, manual sums to 1005: beyond the 0.1 tolerance.
	_, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1000"),
		Months:   []time.Month{time.January, time.February},
		Manual: map[time.Month]decimal.Decimal{
			time.January:  dec("600"),
			time.February: dec("405"),
		},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dues.ErrAllocationExceedsTotal)

	var details *dues.AllocationExceedsTotalError
	require.True(t, errors.As(err, &details))
	assert.True(t, details.Allocated.Equal(dec("1005")))
}

func TestPlan_WithinToleranceAccepted(t *testing.T) {
	// 1000.05 allocated against 1000 declared is inside the tolerance.
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1000"),
		Months:   []time.Month{time.January, time.February},
		Manual: map[time.Month]decimal.Decimal{
			time.January:  dec("500"),
			time.February: dec("500.05"),
		},
	}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Unallocated.IsZero(), "over-by-tolerance has no unallocated residual")
}

func TestPlan_InactiveMonthRejected(t *testing.T) {
	cfg := dues.CollectionConfig{
		ActiveYears:        []int{2024},
		ActiveMonthsByYear: map[int][]time.Month{2024: {time.January, time.March, time.May}},
	}
	_, err := dues.PlanAllocation(cfg, dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("200"),
		Months:   []time.Month{time.January, time.February},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dues.ErrInactivePeriod)

	var inactive *dues.InactivePeriodError
	require.True(t, errors.As(err, &inactive))
	assert.Equal(t, time.February, inactive.Period.Month)
}

func TestPlan_AlreadyPaidIsWarningNotError(t *testing.T) {
	existing := []dues.Payment{{
		ID: "p1", MemberID: "m1", Kind: dues.KindMonthly,
		Amount: dec("500"), Period: dues.NewPeriod(2024, time.January),
	}}
	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("800"),
		Months:   []time.Month{time.January, time.February},
	}, existing)
	require.NoError(t, err, "paid months never block the operation")
	require.Len(t, plan.AlreadyPaid, 1)
	assert.Equal(t, dues.NewPeriod(2024, time.January), plan.AlreadyPaid[0])
	assert.True(t, plan.Lines[0].AlreadyPaid)
	assert.False(t, plan.Lines[1].AlreadyPaid)
}

// =============================================================================
// FILL LAST BLANK
// =============================================================================

func TestFillLastBlank(t *testing.T) {
	months := []time.Month{time.January, time.February, time.March}

	// Exactly one blank and filled sum below total: the blank gets the
	// remainder.
	month, amount, ok := dues.FillLastBlank(dec("1200"), months,
		map[time.Month]decimal.Decimal{time.January: dec("500"), time.February: dec("300")})
	require.True(t, ok)
	assert.Equal(t, time.March, month)
	assert.True(t, amount.Equal(dec("400")))

	// Two blanks: no suggestion.
	_, _, ok = dues.FillLastBlank(dec("1200"), months,
		map[time.Month]decimal.Decimal{time.January: dec("500")})
	assert.False(t, ok)

	// Filled already reaches the total: no suggestion.
	_, _, ok = dues.FillLastBlank(dec("800"), months,
		map[time.Month]decimal.Decimal{time.January: dec("500"), time.February: dec("300")})
	assert.False(t, ok)
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommit_IncrementsExistingAndCreatesNew(t *testing.T) {
	// Member already paid 500 for January and 300 for March. A new 1200
	// spread evenly over Jan-Mar must stack on the existing records.
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.CreatePayment(ctx, dues.Payment{
		ID: "p-jan", MemberID: "m1", Kind: dues.KindMonthly,
		Amount: dec("500"), Period: dues.NewPeriod(2024, time.January),
	}))
	require.NoError(t, mem.CreatePayment(ctx, dues.Payment{
		ID: "p-mar", MemberID: "m1", Kind: dues.KindMonthly,
		Amount: dec("300"), Period: dues.NewPeriod(2024, time.March),
	}))

	existing, err := mem.ListPayments(ctx, dues.PaymentFilter{})
	require.NoError(t, err)

	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("1200"),
		Months:   []time.Month{time.January, time.February, time.March},
	}, existing)
	require.NoError(t, err)
	assert.Len(t, plan.AlreadyPaid, 2)

	allocator := &dues.Allocator{Payments: mem}
	result := allocator.Commit(ctx, plan, time.Now(), "admin")
	require.Empty(t, result.Failed)
	require.Len(t, result.Applied, 3)

	// January and March were incremented in place, February created.
	jan, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.January))
	feb, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.February))
	mar, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.March))
	require.NotNil(t, jan)
	require.NotNil(t, feb)
	require.NotNil(t, mar)
	assert.True(t, jan.Amount.Equal(dec("900")), "Jan 500+400, got %s", jan.Amount)
	assert.True(t, feb.Amount.Equal(dec("400")), "Feb created at 400, got %s", feb.Amount)
	assert.True(t, mar.Amount.Equal(dec("700")), "Mar 300+400, got %s", mar.Amount)
	assert.Equal(t, dues.PaymentID("p-jan"), jan.ID, "increment keeps the original record")
}

func TestCommit_SkipsZeroAmountLines(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("500"),
		Months:   []time.Month{time.January, time.February},
		Manual:   map[time.Month]decimal.Decimal{time.January: dec("500")},
	}, nil)
	require.NoError(t, err)

	allocator := &dues.Allocator{Payments: mem}
	result := allocator.Commit(ctx, plan, time.Now(), "admin")
	require.Len(t, result.Applied, 1, "zero-amount February produces no write")

	feb, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.February))
	assert.Nil(t, feb)
}

func TestCommit_PartialFailureLeavesEarlierWrites(t *testing.T) {
	// A store failure on one period must not roll back the others; the
	// result names the failed period so the caller can retry just that.
	ctx := context.Background()
	mem := store.NewMemory()
	mem.FailCreateFor = map[dues.Period]error{
		dues.NewPeriod(2024, time.February): errors.New("disk full"),
	}

	plan, err := dues.PlanAllocation(allYearConfig(2024), dues.AllocationInput{
		MemberID: "m1",
		Year:     2024,
		Total:    dec("300"),
		Months:   []time.Month{time.January, time.February, time.March},
	}, nil)
	require.NoError(t, err)

	allocator := &dues.Allocator{Payments: mem}
	result := allocator.Commit(ctx, plan, time.Now(), "admin")

	require.Len(t, result.Applied, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, dues.NewPeriod(2024, time.February), result.Failed[0].Period)
	assert.False(t, result.AllFailed())

	jan, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.January))
	mar, _ := mem.FindMonthlyPayment(ctx, "m1", dues.NewPeriod(2024, time.March))
	assert.NotNil(t, jan, "January write survives February's failure")
	assert.NotNil(t, mar, "March is still attempted after February fails")
}
