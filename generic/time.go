package generic

import (
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day (the ledger has day granularity only)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, err
	}
	return TimePoint{Time: t}, nil
}

const DateLayout = "2006-01-02"

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.normalize().Equal(other.normalize()) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// =============================================================================
// HOLIDAY CALENDAR - Declared holidays, global or per scope (site)
// =============================================================================

// Holiday represents a declared non-working day.
type Holiday struct {
	ID        string
	Scope     string    // Empty string = global, otherwise a site ID
	Date      TimePoint // The holiday date
	Name      string    // e.g., "Fiestas Patrias"
	Recurring bool      // true = same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks if a date is a holiday for the given scope.
	// Global holidays apply to every scope.
	IsHoliday(scope string, date TimePoint) bool
}

// StaticHolidays is a fixed, in-process HolidayCalendar.
type StaticHolidays []Holiday

func (s StaticHolidays) IsHoliday(scope string, date TimePoint) bool {
	for _, h := range s {
		if h.Scope != "" && h.Scope != scope {
			continue
		}
		if h.Recurring {
			if h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
				return true
			}
			continue
		}
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

// =============================================================================
// REST DAY CALENDAR - The calendar oracle for overtime classification
// =============================================================================

// RestDayOracle answers whether a date is a rest day for overtime purposes.
// Classification is always computed on demand and never persisted.
type RestDayOracle interface {
	IsRestDay(date TimePoint) bool
}

// RestDayCalendar classifies configured weekdays (default Sunday) and
// declared holidays as rest days.
type RestDayCalendar struct {
	Weekdays []time.Weekday
	Holidays HolidayCalendar // may be nil
	Scope    string
}

// NewRestDayCalendar returns a calendar for the given scope. With no
// weekdays given, Sunday is the only weekly rest day.
func NewRestDayCalendar(holidays HolidayCalendar, scope string, weekdays ...time.Weekday) *RestDayCalendar {
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{time.Sunday}
	}
	return &RestDayCalendar{Weekdays: weekdays, Holidays: holidays, Scope: scope}
}

func (c *RestDayCalendar) IsRestDay(date TimePoint) bool {
	wd := date.Weekday()
	for _, rest := range c.Weekdays {
		if wd == rest {
			return true
		}
	}
	return c.Holidays != nil && c.Holidays.IsHoliday(c.Scope, date)
}

// SundayCalendar is the default oracle: Sundays only, no holidays.
var SundayCalendar RestDayOracle = NewRestDayCalendar(nil, "")

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), s) {
			return wd, true
		}
	}
	return 0, false
}
