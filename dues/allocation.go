/*
allocation.go - Multi-period allocation engine

PURPOSE:
  Given a single declared total and a set of selected months within one
  target year, decides how much of the total applies to each month and
  turns that into payment writes (increment an existing payment or create
  a new one).

TWO PHASES:
  Plan   - pure: resolve per-period amounts, run the validation gate,
           collect warnings (already-paid periods, unallocated residual).
           Guarantees zero writes on validation failure.
  Commit - per-period independent writes. A store failure partway through
           leaves earlier writes committed; CommitResult reports which
           periods succeeded and which failed so the caller can retry
           only the failed subset. There is no rollback across periods.

RESOLUTION ORDER (exact):
  1. Single selected month: 100% of the total, manual input ignored.
  2. No manual input anywhere and total > 0: even split total/n. The
     equal decimal division is taken as-is; no remainder redistribution.
  3. Otherwise: manual values as given; months without an entry get zero.
  4. Gate: sum(allocations) must not exceed total + 0.1 tolerance.
     Under-allocation is allowed and surfaced as a warning, not an error.
  5. Already-paid months are surfaced as warnings and never block;
     stacking payments on a paid month is allowed.

SEE ALSO:
  - request.go: Donation request approval drives this engine
  - store.go: PaymentStore consumed by Commit
*/
package dues

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationTolerance absorbs floating-point rounding between a declared
// total and the per-period sum (0.1 currency unit).
var AllocationTolerance = decimal.RequireFromString("0.1")

// =============================================================================
// INPUT / PLAN
// =============================================================================

// AllocationInput is one allocation request: a declared total split across
// selected months of a single target year.
type AllocationInput struct {
	MemberID MemberID
	Year     int
	Total    decimal.Decimal

	// Months selected for this allocation, any order, duplicates ignored.
	Months []time.Month

	// Manual holds user-entered per-month amounts. A month absent from the
	// map is a blank field, which is different from an explicit zero.
	Manual map[time.Month]decimal.Decimal
}

// AllocationLine is the resolved amount for one selected period.
type AllocationLine struct {
	Period      Period
	Amount      decimal.Decimal
	AlreadyPaid bool
}

// AllocationPlan is the validated outcome of the pure phase.
type AllocationPlan struct {
	MemberID MemberID
	Year     int
	Total    decimal.Decimal
	Lines    []AllocationLine

	// AlreadyPaid lists selected periods that had a payment before this
	// operation. Warning only; the operation proceeds.
	AlreadyPaid []Period

	// Unallocated is the residual when the per-period sum falls short of
	// the declared total. Accepted, but surfaced so callers can warn.
	Unallocated decimal.Decimal
}

// PlanAllocation resolves and validates an allocation without touching the
// store. existing is the member's payments for the target year.
func PlanAllocation(cfg CollectionConfig, in AllocationInput, existing []Payment) (*AllocationPlan, error) {
	months := dedupeMonths(in.Months)
	if len(months) == 0 {
		return nil, ErrNoPeriodSelected
	}
	if in.Total.IsNegative() {
		return nil, &InvalidAmountError{Input: in.Total.String()}
	}
	for _, m := range months {
		period := NewPeriod(in.Year, m)
		if !cfg.IsActive(period) {
			return nil, &InactivePeriodError{Period: period}
		}
	}

	amounts := resolveAmounts(in.Total, months, in.Manual)

	allocated := decimal.Zero
	for _, a := range amounts {
		allocated = allocated.Add(a)
	}
	if allocated.Sub(in.Total).GreaterThan(AllocationTolerance) {
		return nil, &AllocationExceedsTotalError{Total: in.Total, Allocated: allocated}
	}

	plan := &AllocationPlan{
		MemberID: in.MemberID,
		Year:     in.Year,
		Total:    in.Total,
		Lines:    make([]AllocationLine, 0, len(months)),
	}
	for i, m := range months {
		period := NewPeriod(in.Year, m)
		line := AllocationLine{
			Period:      period,
			Amount:      amounts[i],
			AlreadyPaid: IsPaid(existing, in.MemberID, period),
		}
		if line.AlreadyPaid {
			plan.AlreadyPaid = append(plan.AlreadyPaid, period)
		}
		plan.Lines = append(plan.Lines, line)
	}
	if residual := in.Total.Sub(allocated); residual.IsPositive() {
		plan.Unallocated = residual
	} else {
		plan.Unallocated = decimal.Zero
	}
	return plan, nil
}

// resolveAmounts applies the resolution order: single-month override, even
// auto-distribution, or manual values as given.
func resolveAmounts(total decimal.Decimal, months []time.Month, manual map[time.Month]decimal.Decimal) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(months))

	if len(months) == 1 {
		amounts[0] = total
		return amounts
	}

	if len(manual) == 0 && total.IsPositive() {
		share := total.Div(decimal.NewFromInt(int64(len(months))))
		for i := range amounts {
			amounts[i] = share
		}
		return amounts
	}

	for i, m := range months {
		if v, ok := manual[m]; ok {
			amounts[i] = v
		} else {
			amounts[i] = decimal.Zero
		}
	}
	return amounts
}

// FillLastBlank implements the auto-fill affordance triggered when an
// allocation field loses focus: if exactly one selected month is blank and
// the filled months sum to strictly less than the total, the blank month
// gets the remainder. Returns ok=false when the precondition doesn't hold.
func FillLastBlank(total decimal.Decimal, months []time.Month, manual map[time.Month]decimal.Decimal) (time.Month, decimal.Decimal, bool) {
	var blank time.Month
	blanks := 0
	filled := decimal.Zero
	for _, m := range dedupeMonths(months) {
		v, ok := manual[m]
		if !ok {
			blank = m
			blanks++
			continue
		}
		filled = filled.Add(v)
	}
	if blanks != 1 || !filled.LessThan(total) {
		return 0, decimal.Zero, false
	}
	return blank, total.Sub(filled), true
}

func dedupeMonths(months []time.Month) []time.Month {
	seen := make(map[time.Month]bool, len(months))
	out := make([]time.Month, 0, len(months))
	for _, m := range months {
		if m < time.January || m > time.December || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// COMMIT - Per-period independent writes
// =============================================================================

// PeriodWrite records one successful per-period write.
type PeriodWrite struct {
	Period    Period
	Amount    decimal.Decimal
	PaymentID PaymentID
	Created   bool // false = incremented an existing payment
}

// PeriodFailure records one failed per-period write.
type PeriodFailure struct {
	Period Period
	Err    error
}

// CommitResult reports the outcome of the write phase. Failed is non-empty
// when some periods could not be written; the caller retries only those.
type CommitResult struct {
	Applied []PeriodWrite
	Failed  []PeriodFailure
}

// AllFailed reports whether nothing was written.
func (r *CommitResult) AllFailed() bool {
	return len(r.Applied) == 0 && len(r.Failed) > 0
}

// Allocator commits validated plans against a payment store.
type Allocator struct {
	Payments PaymentStore
}

// Commit applies a plan: for each line with a positive amount, increment
// the existing payment for (member, period) or create a new one. Writes
// are independent; errors are collected per period, never rolled back.
func (a *Allocator) Commit(ctx context.Context, plan *AllocationPlan, paidAt time.Time, recordedBy string) *CommitResult {
	result := &CommitResult{}

	for _, line := range plan.Lines {
		if !line.Amount.IsPositive() {
			continue
		}

		existing, err := a.Payments.FindMonthlyPayment(ctx, plan.MemberID, line.Period)
		if err != nil {
			result.Failed = append(result.Failed, PeriodFailure{Period: line.Period, Err: err})
			continue
		}

		if existing != nil {
			if err := a.Payments.IncrementPaymentAmount(ctx, existing.ID, line.Amount); err != nil {
				result.Failed = append(result.Failed, PeriodFailure{Period: line.Period, Err: err})
				continue
			}
			result.Applied = append(result.Applied, PeriodWrite{
				Period:    line.Period,
				Amount:    line.Amount,
				PaymentID: existing.ID,
			})
			continue
		}

		payment := Payment{
			ID:         PaymentID(uuid.NewString()),
			MemberID:   plan.MemberID,
			Kind:       KindMonthly,
			Amount:     line.Amount,
			Period:     line.Period,
			PaidAt:     paidAt,
			Note:       fmt.Sprintf("allocation for %s", line.Period.Label()),
			RecordedBy: recordedBy,
		}
		if err := a.Payments.CreatePayment(ctx, payment); err != nil {
			result.Failed = append(result.Failed, PeriodFailure{Period: line.Period, Err: err})
			continue
		}
		result.Applied = append(result.Applied, PeriodWrite{
			Period:    line.Period,
			Amount:    line.Amount,
			PaymentID: payment.ID,
			Created:   true,
		})
	}
	return result
}
