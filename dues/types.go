/*
Package dues provides the core dues and donation engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking a
  community fund's monthly collections: classifying each member/month cell
  of the collection matrix, aggregating totals, and distributing a lump
  donation amount across multiple selected months.

KEY CONCEPTS IN THIS FILE (types.go):
  - Payment: one recorded contribution (monthly or one-time)
  - PaymentKind: monthly dues vs. one-time donation
  - Member/Payment/Request IDs: type-safe identifiers
  - ParseAmount: the single place where string amounts become decimals

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Parse once: amounts are validated at the boundary, never coerced inside
  3. Pure core: status and totals are pure functions of their inputs
  4. Explicit configuration: callers pass CollectionConfig snapshots;
     there is no ambient mutable state

SEE ALSO:
  - period.go: The (year, month) collection cycle
  - status.go: Paid/due-soon/overdue/future classification
  - allocation.go: Multi-period allocation engine
  - config.go: Active years/months configuration gate
*/
package dues

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type PaymentID string
type RequestID string

// =============================================================================
// PAYMENT - One recorded contribution
// =============================================================================

type PaymentKind string

const (
	KindMonthly PaymentKind = "monthly"  // dues for a specific (year, month) period
	KindOneTime PaymentKind = "one-time" // donation not tied to any period
)

// Payment represents one recorded contribution. Multiple payments may exist
// for the same member+period (accidental double entries); readers sum them
// rather than overwriting, so the underlying records are never lost.
type Payment struct {
	ID       PaymentID
	MemberID MemberID
	Kind     PaymentKind
	Amount   decimal.Decimal

	// Period is meaningful only when Kind == KindMonthly.
	Period Period

	PaidAt     time.Time
	Note       string
	RecordedBy string
	CreatedAt  time.Time
}

// IsMonthlyFor reports whether this payment satisfies the given member+period.
// Malformed rows (wrong kind, invalid period) simply don't match; the matrix
// render calls this per cell and must never panic on bad data.
func (p Payment) IsMonthlyFor(memberID MemberID, period Period) bool {
	return p.Kind == KindMonthly &&
		p.MemberID == memberID &&
		p.Period.Valid() &&
		p.Period == period
}

// =============================================================================
// AMOUNT PARSING - Validate once at the boundary
// =============================================================================

// ParseAmount converts a form-supplied amount string into a decimal.
// Empty and whitespace-only input is reported distinctly from malformed
// input so callers can treat blank allocation fields as "not entered".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrBlankAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Input: s}
	}
	if d.IsNegative() {
		return decimal.Zero, &InvalidAmountError{Input: s}
	}
	return d, nil
}

// SumAmounts adds a list of decimals. Zero values are summed as-is;
// there is no NaN in decimal arithmetic so no special-casing is needed.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
