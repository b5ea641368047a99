package attendance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/site-attendance/generic"
)

// ComputeTotals derives a worker's monthly totals with a full pass over days.
// It is a pure function of its inputs: the same final days always produce
// the same totals, whatever edit order produced them.
//
// Records without a status count toward overtime only.
func ComputeTotals(month generic.Month, days map[int]DayRecord, calendar generic.RestDayOracle) Totals {
	t := Totals{
		Counts:          make(map[Status]int, len(Statuses)),
		OvertimeWeekday: decimal.Zero,
		OvertimeRestDay: decimal.Zero,
	}
	for _, s := range Statuses {
		t.Counts[s] = 0
	}

	for day, rec := range days {
		if rec.Status != StatusNone {
			t.Counts[rec.Status]++
		}
		if !rec.OvertimeHours.IsPositive() {
			continue
		}
		weekday, rest := SplitOvertime(month.Date(day), rec.OvertimeHours, calendar)
		t.OvertimeWeekday = t.OvertimeWeekday.Add(weekday)
		t.OvertimeRestDay = t.OvertimeRestDay.Add(rest)
	}
	return t
}

// SplitOvertime assigns hours to the weekday or rest-day surcharge bucket.
// The classification is computed from the current calendar every time and
// must never be persisted as the source of truth.
func SplitOvertime(date generic.TimePoint, hours decimal.Decimal, calendar generic.RestDayOracle) (weekday, restDay decimal.Decimal) {
	if calendar.IsRestDay(date) {
		return decimal.Zero, hours
	}
	return hours, decimal.Zero
}
