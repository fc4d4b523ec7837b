// Package calendar decides which dates are school days.
package calendar

import (
	"time"
)

type monthDay struct {
	month time.Month
	day   int
}

type Calendar struct {
	holidays []monthDay
	loc      *time.Location
	now      func() time.Time
}

// New builds a calendar from (month, day) pairs. Entries that are not exactly
// two numbers are ignored; dates that do not exist in a given year are
// skipped for that year only.
func New(holidays [][]int, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{loc: loc, now: time.Now}
	for _, h := range holidays {
		if len(h) != 2 {
			continue
		}
		if h[0] < 1 || h[0] > 12 || h[1] < 1 || h[1] > 31 {
			continue
		}
		c.holidays = append(c.holidays, monthDay{month: time.Month(h[0]), day: h[1]})
	}
	return c
}

// WithClock replaces the wall clock, used by tests and the debug test_date override.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	c.now = now
	return c
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Day normalizes t to its civil date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current civil date in the school time zone.
func (c *Calendar) Today() time.Time {
	return Day(c.now().In(c.loc))
}

func (c *Calendar) holidaysFor(year int) map[time.Time]bool {
	out := make(map[time.Time]bool, len(c.holidays))
	for _, h := range c.holidays {
		d := time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes Feb 29 into Mar 1 on non-leap years
		if d.Month() != h.month || d.Day() != h.day {
			continue
		}
		out[d] = true
	}
	return out
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (c *Calendar) IsSchoolDay(day time.Time) bool {
	d := Day(day)
	if isWeekend(d) {
		return false
	}
	return !c.holidaysFor(d.Year())[d]
}

func (c *Calendar) WorkingDaysInMonth(year int, month time.Month) []time.Time {
	holidays := c.holidaysFor(year)

	var days []time.Time
	for d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC); d.Month() == month; d = d.AddDate(0, 0, 1) {
		if isWeekend(d) || holidays[d] {
			continue
		}
		days = append(days, d)
	}
	return days
}

func (c *Calendar) CountWorkingDays(year int, month time.Month) int {
	return len(c.WorkingDaysInMonth(year, month))
}
