// Package market_hours decides which days the US equity market trades.
package market_hours

import (
	"sync"
	"time"
)

// Calendar answers trading-day questions for NYSE. Dates are interpreted by
// their calendar day; the time of day and location are ignored.
type Calendar struct {
	mu    sync.Mutex
	years map[int]map[time.Time]string
}

// NewCalendar creates a calendar with an empty per-year holiday cache
func NewCalendar() *Calendar {
	return &Calendar{years: make(map[int]map[time.Time]string)}
}

func day(t time.Time) time.Time {
	return date(t.Year(), t.Month(), t.Day())
}

func (c *Calendar) holidaySet(year int) map[time.Time]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.years[year]; ok {
		return set
	}
	set := make(map[time.Time]string)
	for _, h := range CalculateUSHolidays(year) {
		set[h.Date] = h.Name
	}
	c.years[year] = set
	return set
}

// Holidays returns the holidays observed in year
func (c *Calendar) Holidays(year int) []Holiday {
	return CalculateUSHolidays(year)
}

// HolidayName returns the holiday on d, if any
func (c *Calendar) HolidayName(d time.Time) (string, bool) {
	d = day(d)
	name, ok := c.holidaySet(d.Year())[d]
	return name, ok
}

// IsOpen reports whether d is a trading day
func (c *Calendar) IsOpen(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.HolidayName(d)
	return !holiday
}

// IsFirstTradingDayOfWeek reports whether d is the earliest open day on or
// after the Monday of its week. A Monday holiday shifts this to Tuesday.
func (c *Calendar) IsFirstTradingDayOfWeek(d time.Time) bool {
	d = day(d)
	if !c.IsOpen(d) {
		return false
	}
	offset := (int(d.Weekday()) + 6) % 7 // days since Monday
	monday := d.AddDate(0, 0, -offset)
	for cur := monday; cur.Before(d); cur = cur.AddDate(0, 0, 1) {
		if c.IsOpen(cur) {
			return false
		}
	}
	return true
}

// NextOpen returns the first trading day strictly after d
func (c *Calendar) NextOpen(d time.Time) time.Time {
	cur := day(d).AddDate(0, 0, 1)
	for !c.IsOpen(cur) {
		cur = cur.AddDate(0, 0, 1)
	}
	return cur
}

// PreviousOpen returns the last trading day strictly before d
func (c *Calendar) PreviousOpen(d time.Time) time.Time {
	cur := day(d).AddDate(0, 0, -1)
	for !c.IsOpen(cur) {
		cur = cur.AddDate(0, 0, -1)
	}
	return cur
}

// DayStatus summarizes a date for the API and CLI
type DayStatus struct {
	Date           string `json:"date"`
	Weekday        string `json:"weekday"`
	Holiday        string `json:"holiday,omitempty"`
	NextOpen       string `json:"next_open"`
	PreviousOpen   string `json:"previous_open"`
	Open           bool   `json:"open"`
	FirstDayOfWeek bool   `json:"first_trading_day_of_week"`
}

// Status describes d
func (c *Calendar) Status(d time.Time) DayStatus {
	d = day(d)
	holiday, _ := c.HolidayName(d)
	return DayStatus{
		Date:           d.Format("2006-01-02"),
		Weekday:        d.Weekday().String(),
		Holiday:        holiday,
		Open:           c.IsOpen(d),
		FirstDayOfWeek: c.IsFirstTradingDayOfWeek(d),
		NextOpen:       c.NextOpen(d).Format("2006-01-02"),
		PreviousOpen:   c.PreviousOpen(d).Format("2006-01-02"),
	}
}
