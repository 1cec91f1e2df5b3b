// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence date
// generation. Each pattern (weekly, biweekly, monthly) has its own
// generator that expands a template's anchor date into concrete
// occurrence dates within a bounded range.

package services

import (
	"fmt"
	"time"

	"paytrack/internal/core"
)

// DateGenerator is the strategy interface for expanding a recurrence
// pattern into calendar dates. Implementations are pure functions:
// same inputs, same output, no side effects.
type DateGenerator interface {
	// Dates returns every occurrence of the pattern anchored at anchor
	// that falls within [rangeStart, rangeEnd], both ends inclusive,
	// in ascending order. No date earlier than the anchor is emitted.
	Dates(anchor, rangeStart, rangeEnd core.Date) []core.Date
}

// WeeklyGenerator emits dates every 7 days from the anchor.
type WeeklyGenerator struct{}

func (WeeklyGenerator) Dates(anchor, rangeStart, rangeEnd core.Date) []core.Date {
	return stepDates(anchor, rangeStart, rangeEnd, 7)
}

// BiweeklyGenerator emits dates every 14 days from the anchor.
type BiweeklyGenerator struct{}

func (BiweeklyGenerator) Dates(anchor, rangeStart, rangeEnd core.Date) []core.Date {
	return stepDates(anchor, rangeStart, rangeEnd, 14)
}

// stepDates generates anchor + step*k dates inside the range. The gap
// between rangeStart and the anchor is integer-divided by the step to
// fast-forward k instead of walking week by week; the result is the
// smallest anchor + step*k that is >= max(anchor, rangeStart).
func stepDates(anchor, rangeStart, rangeEnd core.Date, stepDays int) []core.Date {
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	current := anchor
	if anchor.Before(rangeStart) {
		steps := daysBetween(anchor, rangeStart) / stepDays
		current = anchor.AddDays(steps * stepDays)
		if current.Before(rangeStart) {
			current = current.AddDays(stepDays)
		}
	}

	var dates []core.Date
	for !current.After(rangeEnd) {
		dates = append(dates, current)
		current = current.AddDays(stepDays)
	}
	return dates
}

// MonthlyGenerator emits one date per calendar month.
//
// The day-selection rule is decided once from the anchor: if the
// anchor is the last day of its month, every occurrence lands on the
// last day of its month (Jan 31 -> Feb 29 in a leap year, Feb 28
// otherwise, then Mar 31). Otherwise occurrences keep the anchor's
// day-of-month, clamped to the last day of months that are too short.
// Clamping is independent each month: day 31 clamps to Apr 30 but
// returns to May 31.
type MonthlyGenerator struct{}

func (MonthlyGenerator) Dates(anchor, rangeStart, rangeEnd core.Date) []core.Date {
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	useLastDay := anchor.Day() == lastDayOf(anchor.Year(), anchor.Month())
	anchorDay := anchor.Day()

	current := anchor
	for current.Before(rangeStart) {
		current = nextMonthlyOccurrence(current, useLastDay, anchorDay)
	}

	var dates []core.Date
	for !current.After(rangeEnd) {
		dates = append(dates, current)
		current = nextMonthlyOccurrence(current, useLastDay, anchorDay)
	}
	return dates
}

// nextMonthlyOccurrence is the single step of the monthly state
// machine: advance one calendar month, then reapply the day-selection
// rule from scratch.
func nextMonthlyOccurrence(current core.Date, useLastDay bool, anchorDay int) core.Date {
	year, month := current.Year(), current.Month()+1
	if month > 12 {
		year, month = year+1, 1
	}
	if useLastDay {
		return core.NewDate(year, month, lastDayOf(year, month))
	}
	return core.NewDate(year, month, clampDay(year, month, anchorDay))
}

// lastDayOf returns the number of the last day of the given month.
func lastDayOf(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay returns day, or the month's last day when day does not
// exist in that month.
func clampDay(year, month, day int) int {
	if last := lastDayOf(year, month); day > last {
		return last
	}
	return day
}

// daysBetween returns the whole days from a to b. Dates are midnight
// UTC, so the division is exact.
func daysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

// dateGenerators maps recurrence patterns to their generators.
// This registry enables O(1) lookup and easy extension for new patterns.
var dateGenerators = map[core.RecurrencePattern]DateGenerator{
	core.Weekly:   WeeklyGenerator{},
	core.Biweekly: BiweeklyGenerator{},
	core.Monthly:  MonthlyGenerator{},
}

// GetDateGenerator returns the generator for a recurrence pattern.
// An unknown pattern is a configuration error and fails fast.
func GetDateGenerator(pattern core.RecurrencePattern) (DateGenerator, error) {
	gen, ok := dateGenerators[pattern]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence pattern: %s", pattern)
	}
	return gen, nil
}

// RegisterDateGenerator registers a custom generator for a new pattern.
func RegisterDateGenerator(pattern core.RecurrencePattern, gen DateGenerator) {
	dateGenerators[pattern] = gen
}
