package accrual

import "time"

// Calculator sums hourly rates over a window in a fixed calendar location.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	rates RateTable
	loc   *time.Location
}

// NewCalculator creates a calculator. A nil location means UTC.
func NewCalculator(rates RateTable, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{rates: rates, loc: loc}
}

// Location returns the calendar used for hour and month boundaries
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// RateAt returns the rate of the hour slot containing t
func (c *Calculator) RateAt(t time.Time) int {
	local := t.In(c.loc)
	return c.rates.RateFor(local.Weekday(), local.Hour())
}

// AccrueFromNow returns the coins earned from the next full hour after ref
// up to midnight on the first day of the month following ref's month.
// The partially elapsed current hour never counts.
func (c *Calculator) AccrueFromNow(ref time.Time) int {
	local := ref.In(c.loc)
	start := startOfHour(local).Add(time.Hour)
	end := time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, c.loc)
	return c.Accrue(start, end)
}

// MonthTotal returns the coins for every hour slot of the given month
func (c *Calculator) MonthTotal(year int, month time.Month) int {
	start := time.Date(year, month, 1, 0, 0, 0, 0, c.loc)
	end := time.Date(year, month+1, 1, 0, 0, 0, 0, c.loc)
	return c.Accrue(start, end)
}

// Accrue sums the rate of each hour slot in [from, until)
func (c *Calculator) Accrue(from, until time.Time) int {
	total := 0
	for cursor := from.In(c.loc); cursor.Before(until); cursor = cursor.Add(time.Hour) {
		total += c.rates.RateFor(cursor.Weekday(), cursor.Hour())
	}
	return total
}

// startOfHour truncates in the local calendar; time.Truncate works on absolute
// time and would misalign zones with non-hour offsets.
func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
