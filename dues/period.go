package dues

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - One (year, month) collection cycle
// =============================================================================

// Period identifies a monthly collection cycle. Periods exist only if the
// collection configuration declares them active; see config.go.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing the given date.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Valid reports whether the period is well-formed. Zero-value periods come
// from one-time payments and malformed store rows; treat them as absent.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Comparison
func (p Period) Before(o Period) bool {
	return p.Year < o.Year || (p.Year == o.Year && p.Month < o.Month)
}
func (p Period) After(o Period) bool { return o.Before(p) }
func (p Period) Equal(o Period) bool { return p == o }

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// String returns the sortable form, e.g. "2024-03".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label returns the display form, e.g. "Mar 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month.String()[:3], p.Year)
}

// MonthsOfYear returns all twelve periods of a year in calendar order.
func MonthsOfYear(year int) []Period {
	periods := make([]Period, 0, 12)
	for m := time.January; m <= time.December; m++ {
		periods = append(periods, Period{Year: year, Month: m})
	}
	return periods
}
