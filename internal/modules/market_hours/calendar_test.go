package market_hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalculateEaster(t *testing.T) {
	tests := map[int]string{
		2024: "2024-03-31",
		2025: "2025-04-20",
		2026: "2026-04-05",
		2027: "2027-03-28",
	}
	for year, want := range tests {
		assert.Equal(t, d(want), CalculateEaster(year), "year %d", year)
	}
	assert.Equal(t, d("2025-04-18"), CalculateGoodFriday(2025))
}

func TestCalendar_IsOpen(t *testing.T) {
	cal := NewCalendar()

	tests := []struct {
		date string
		open bool
		why  string
	}{
		{"2025-01-01", false, "New Year's Day"},
		{"2025-01-02", true, "regular Thursday"},
		{"2025-01-04", false, "Saturday"},
		{"2025-01-05", false, "Sunday"},
		{"2025-01-20", false, "MLK Day"},
		{"2025-02-17", false, "Presidents' Day"},
		{"2025-04-18", false, "Good Friday"},
		{"2025-05-26", false, "Memorial Day"},
		{"2025-06-19", false, "Juneteenth"},
		{"2025-07-04", false, "Independence Day on a Friday"},
		{"2025-07-03", true, "day before Independence Day"},
		{"2026-07-03", false, "July 4 2026 is a Saturday, observed Friday"},
		{"2026-07-06", true, "Monday after a Saturday July 4"},
		{"2027-07-05", false, "July 4 2027 is a Sunday, observed Monday"},
		{"2027-07-02", true, "Friday before a Sunday July 4"},
		{"2027-06-18", false, "Juneteenth 2027 Saturday, observed Friday"},
		{"2025-09-01", false, "Labor Day"},
		{"2025-11-27", false, "Thanksgiving"},
		{"2025-12-25", false, "Christmas"},
		{"2022-12-26", false, "Christmas 2022 Sunday, observed Monday"},
		{"2021-12-31", true, "New Year 2022 on Saturday is not observed"},
	}

	for _, tt := range tests {
		t.Run(tt.date+" "+tt.why, func(t *testing.T) {
			assert.Equal(t, tt.open, cal.IsOpen(d(tt.date)))
		})
	}
}

func TestCalendar_IgnoresTimeOfDayAndLocation(t *testing.T) {
	cal := NewCalendar()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 21:00 on July 3rd in New York is already July 4th in UTC
	evening := time.Date(2025, 7, 3, 21, 0, 0, 0, ny)
	assert.True(t, cal.IsOpen(evening))
}

func TestCalendar_IsFirstTradingDayOfWeek(t *testing.T) {
	cal := NewCalendar()

	assert.True(t, cal.IsFirstTradingDayOfWeek(d("2025-01-13")), "ordinary Monday")
	assert.False(t, cal.IsFirstTradingDayOfWeek(d("2025-01-14")), "Tuesday after an open Monday")
	assert.True(t, cal.IsFirstTradingDayOfWeek(d("2025-01-21")), "Tuesday after MLK Day")
	assert.True(t, cal.IsFirstTradingDayOfWeek(d("2025-09-02")), "Tuesday after Labor Day")
	assert.False(t, cal.IsFirstTradingDayOfWeek(d("2025-01-20")), "holiday itself")
	assert.False(t, cal.IsFirstTradingDayOfWeek(d("2025-01-18")), "Saturday")
	assert.False(t, cal.IsFirstTradingDayOfWeek(d("2025-01-02")), "week opened on Monday 2024-12-30")
}

func TestCalendar_NextAndPreviousOpen(t *testing.T) {
	cal := NewCalendar()

	assert.Equal(t, d("2025-07-07"), cal.NextOpen(d("2025-07-03")))
	assert.Equal(t, d("2025-07-03"), cal.PreviousOpen(d("2025-07-07")))
	assert.Equal(t, d("2025-01-02"), cal.NextOpen(d("2024-12-31")))
	assert.Equal(t, d("2025-04-17"), cal.PreviousOpen(d("2025-04-21")))
}

func TestCalendar_Status(t *testing.T) {
	cal := NewCalendar()
	st := cal.Status(d("2025-07-04"))

	assert.False(t, st.Open)
	assert.Equal(t, "Independence Day", st.Holiday)
	assert.Equal(t, "Friday", st.Weekday)
	assert.Equal(t, "2025-07-07", st.NextOpen)
	assert.Equal(t, "2025-07-03", st.PreviousOpen)
}

func TestCalculateUSHolidays_Count(t *testing.T) {
	assert.Len(t, CalculateUSHolidays(2025), 10)
	// 2022: New Year falls on Saturday and is skipped
	assert.Len(t, CalculateUSHolidays(2022), 9)
}
