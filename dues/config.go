/*
config.go - Collection configuration and the activation gate

PURPOSE:
  Admin-mutable set of active collection years, and for each year an
  optional subset of active months (default: all twelve). The gate is the
  single source of truth consulted by the status resolver, the matrix
  builder, and the allocation engine.

DESIGN NOTE:
  Configuration is passed into engine functions as an explicit snapshot.
  There is no package-level state: callers own the lifecycle, load the
  current configuration from the store, and hand it to each call.

CASCADE:
  Removing a year or disabling a month also removes the associated payment
  records. That cascade is a deliberate admin-facing behavior enforced by
  the store layer on configuration update (store/sqlite), not by this gate.
*/
package dues

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// COLLECTION CONFIGURATION
// =============================================================================

// CollectionConfig declares which (year, month) periods are legal targets
// for allocation and status computation.
type CollectionConfig struct {
	ActiveYears []int `json:"active_years"`

	// ActiveMonthsByYear restricts a year to a subset of months.
	// A year with no entry defaults to all twelve months.
	ActiveMonthsByYear map[int][]time.Month `json:"active_months_by_year,omitempty"`
}

// DefaultConfig activates a single year with all twelve months.
func DefaultConfig(year int) CollectionConfig {
	return CollectionConfig{ActiveYears: []int{year}}
}

// Validate checks structural soundness: months in range, month lists only
// for active years.
func (c CollectionConfig) Validate() error {
	active := make(map[int]bool, len(c.ActiveYears))
	for _, y := range c.ActiveYears {
		if y <= 0 {
			return fmt.Errorf("invalid active year %d", y)
		}
		active[y] = true
	}
	for year, months := range c.ActiveMonthsByYear {
		if !active[year] {
			return fmt.Errorf("month list for inactive year %d", year)
		}
		if len(months) == 0 {
			return fmt.Errorf("empty month list for year %d", year)
		}
		for _, m := range months {
			if m < time.January || m > time.December {
				return fmt.Errorf("invalid month %d for year %d", m, year)
			}
		}
	}
	return nil
}

// YearActive reports whether a year is in the active set.
func (c CollectionConfig) YearActive(year int) bool {
	for _, y := range c.ActiveYears {
		if y == year {
			return true
		}
	}
	return false
}

// ActiveMonths returns the active months of a year in calendar order.
// Nil for inactive years; all twelve for years without an explicit list.
func (c CollectionConfig) ActiveMonths(year int) []time.Month {
	if !c.YearActive(year) {
		return nil
	}
	months, ok := c.ActiveMonthsByYear[year]
	if !ok {
		months = make([]time.Month, 0, 12)
		for m := time.January; m <= time.December; m++ {
			months = append(months, m)
		}
		return months
	}
	sorted := make([]time.Month, len(months))
	copy(sorted, months)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

// IsActive reports whether a period is a legal target.
func (c CollectionConfig) IsActive(p Period) bool {
	if !p.Valid() {
		return false
	}
	for _, m := range c.ActiveMonths(p.Year) {
		if m == p.Month {
			return true
		}
	}
	return false
}

// ActivePeriods returns the active periods of a year in calendar order.
func (c CollectionConfig) ActivePeriods(year int) []Period {
	months := c.ActiveMonths(year)
	periods := make([]Period, 0, len(months))
	for _, m := range months {
		periods = append(periods, Period{Year: year, Month: m})
	}
	return periods
}
