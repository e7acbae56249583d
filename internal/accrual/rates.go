// Package accrual computes how many care coins an actor earns over the rest of a month.
package accrual

import "time"

// RateTable maps [weekday][hour] to coins per hour. Weekday follows time.Weekday (0 = Sunday).
type RateTable [7][24]int

// RateFor returns the hourly rate, or 0 for a slot outside the table
func (t *RateTable) RateFor(day time.Weekday, hour int) int {
	if day < time.Sunday || day > time.Saturday || hour < 0 || hour > 23 {
		return 0
	}
	return t[day][hour]
}

// WeekTotal is the sum of every slot in the table
func (t *RateTable) WeekTotal() int {
	total := 0
	for _, day := range t {
		for _, rate := range day {
			total += rate
		}
	}
	return total
}

// Weekday nights are cheap, daytime is standard, weekends and Friday evening pay extra.
var defaultRates = RateTable{
	{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 1, 1}, // Sunday
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1}, // Monday
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1}, // Tuesday
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1}, // Wednesday
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1}, // Thursday
	{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 4, 4, 4, 4}, // Friday
	{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4}, // Saturday
}

// DefaultRateTable returns a copy of the built-in weekly schedule
func DefaultRateTable() RateTable {
	return defaultRates
}
