package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - The period a ledger grid covers
// =============================================================================

// Month identifies one calendar month. A ledger grid is always one site
// for one Month.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// Valid reports whether the month number is 1..12.
func (m Month) Valid() bool {
	return m.Month >= time.January && m.Month <= time.December
}

// DaysIn returns the number of days in the month (28..31).
func (m Month) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Contains returns true if day is a valid day-of-month.
func (m Month) Contains(day int) bool {
	return day >= 1 && day <= m.DaysIn()
}

// Date returns the TimePoint for a day of this month.
func (m Month) Date(day int) TimePoint {
	return NewTimePoint(m.Year, m.Month, day)
}

func (m Month) Start() TimePoint { return m.Date(1) }
func (m Month) End() TimePoint   { return m.Date(m.DaysIn()) }

// Days returns all days in the month as TimePoints.
func (m Month) Days() []TimePoint {
	n := m.DaysIn()
	days := make([]TimePoint, n)
	for i := range days {
		days[i] = m.Date(i + 1)
	}
	return days
}

// Next returns the following month.
func (m Month) Next() Month {
	t := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Previous returns the preceding month.
func (m Month) Previous() Month {
	t := time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
