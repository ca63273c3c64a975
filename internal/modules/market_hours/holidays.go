package market_hours

import "time"

// Holiday is a full-day NYSE closure
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// CalculateEaster returns Western (Gregorian) Easter Sunday using the computus method
func CalculateEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return date(year, time.Month(month), day)
}

// CalculateGoodFriday is Easter minus two days
func CalculateGoodFriday(year int) time.Time {
	return CalculateEaster(year).AddDate(0, 0, -2)
}

// findNthWeekday finds the nth (1-based) occurrence of weekday in month
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := date(year, month, 1)
	offset := int(weekday - first.Weekday())
	if offset < 0 {
		offset += 7
	}
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// findLastWeekday finds the last occurrence of weekday in month
func findLastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := date(year, month+1, 0)
	offset := int(last.Weekday() - weekday)
	if offset < 0 {
		offset += 7
	}
	return last.AddDate(0, 0, -offset)
}

// observeOnWeekday moves Saturday holidays to Friday and Sunday holidays to Monday
func observeOnWeekday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// CalculateUSHolidays returns the NYSE full-day holidays observed in year.
// New Year's Day on a Saturday is not moved back into the previous year.
func CalculateUSHolidays(year int) []Holiday {
	holidays := make([]Holiday, 0, 10)
	add := func(d time.Time, name string) {
		holidays = append(holidays, Holiday{Date: d, Name: name})
	}

	newYear := date(year, time.January, 1)
	switch newYear.Weekday() {
	case time.Sunday:
		add(newYear.AddDate(0, 0, 1), "New Year's Day (observed)")
	case time.Saturday:
	default:
		add(newYear, "New Year's Day")
	}

	add(findNthWeekday(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day")
	add(findNthWeekday(year, time.February, time.Monday, 3), "Presidents' Day")
	add(CalculateGoodFriday(year), "Good Friday")
	add(findLastWeekday(year, time.May, time.Monday), "Memorial Day")
	add(observed(date(year, time.June, 19), "Juneteenth"))
	add(observed(date(year, time.July, 4), "Independence Day"))
	add(findNthWeekday(year, time.September, time.Monday, 1), "Labor Day")
	add(findNthWeekday(year, time.November, time.Thursday, 4), "Thanksgiving Day")
	add(observed(date(year, time.December, 25), "Christmas Day"))

	return holidays
}

func observed(d time.Time, name string) (time.Time, string) {
	o := observeOnWeekday(d)
	if !o.Equal(d) {
		name += " (observed)"
	}
	return o, name
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
