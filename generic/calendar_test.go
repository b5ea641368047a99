package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-attendance/generic"
)

func TestMonth_DaysIn(t *testing.T) {
	tests := []struct {
		month generic.Month
		want  int
	}{
		{generic.NewMonth(2025, time.January), 31},
		{generic.NewMonth(2025, time.February), 28},
		{generic.NewMonth(2024, time.February), 29},
		{generic.NewMonth(2025, time.April), 30},
		{generic.NewMonth(2025, time.December), 31},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.month.DaysIn())
			assert.Len(t, tt.month.Days(), tt.want)
			assert.True(t, tt.month.Contains(tt.want))
			assert.False(t, tt.month.Contains(tt.want+1))
			assert.False(t, tt.month.Contains(0))
		})
	}
}

func TestMonth_NextPreviousWrapYear(t *testing.T) {
	dec := generic.NewMonth(2024, time.December)
	jan := generic.NewMonth(2025, time.January)

	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Previous())
	assert.Equal(t, "2025-01", jan.String())
	assert.False(t, generic.NewMonth(2025, 13).Valid())
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d.Weekday())
	assert.Equal(t, "2025-03-14", d.String())

	_, err = generic.ParseDate("14/03/2025")
	assert.Error(t, err)
}

func TestRestDayCalendar(t *testing.T) {
	holidays := generic.StaticHolidays{
		{Scope: "", Date: generic.NewTimePoint(2020, time.September, 18), Name: "Fiestas Patrias", Recurring: true},
		{Scope: "obra-sur", Date: generic.NewTimePoint(2025, time.March, 14), Name: "Aniversario"},
	}

	tests := []struct {
		name  string
		scope string
		date  generic.TimePoint
		want  bool
	}{
		{"sunday", "obra-sur", generic.NewTimePoint(2025, time.March, 16), true},
		{"plain weekday", "obra-sur", generic.NewTimePoint(2025, time.March, 13), false},
		{"site holiday in scope", "obra-sur", generic.NewTimePoint(2025, time.March, 14), true},
		{"site holiday other scope", "obra-norte", generic.NewTimePoint(2025, time.March, 14), false},
		{"recurring global holiday", "obra-norte", generic.NewTimePoint(2025, time.September, 18), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := generic.NewRestDayCalendar(holidays, tt.scope)
			assert.Equal(t, tt.want, cal.IsRestDay(tt.date))
		})
	}
}

func TestRestDayCalendar_CustomWeekdays(t *testing.T) {
	cal := generic.NewRestDayCalendar(nil, "", time.Saturday, time.Sunday)

	assert.True(t, cal.IsRestDay(generic.NewTimePoint(2025, time.March, 15)))
	assert.True(t, cal.IsRestDay(generic.NewTimePoint(2025, time.March, 16)))
	assert.False(t, cal.IsRestDay(generic.NewTimePoint(2025, time.March, 17)))
}

func TestParseWeekday(t *testing.T) {
	wd, ok := generic.ParseWeekday("SUNDAY")
	assert.True(t, ok)
	assert.Equal(t, time.Sunday, wd)

	_, ok = generic.ParseWeekday("domingo")
	assert.False(t, ok)
}

func TestNewID_Unique(t *testing.T) {
	a, b := generic.NewID(), generic.NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
