// Package recurrence computes the due dates of recurring invoice templates.
//
// All functions are pure: they take explicit instants and never read the
// wall clock, so schedule math is unit-testable without a database or timer.
package recurrence

import (
	"fmt"
	"time"
)

// Frequency is the unit of a recurrence period. It is a closed enum; an
// unrecognized value is a validation error, never a silent daily fallback.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// ParseFrequency validates a wire-format frequency value.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Daily, Weekly, Monthly, Yearly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unrecognized frequency %q", s)
}

// Valid reports whether f is one of the known frequency values.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Next returns the occurrence exactly one period after anchor.
//
// Month and year addition is calendar-aware and clamps to the last valid day
// of the target month: Jan 31 + 1 month = Feb 29 (leap) or Feb 28, and
// Feb 29 + 1 year = Feb 28. The clamped result becomes the anchor for the
// following occurrence, so a template anchored on the 31st drifts to the
// 29th/28th after crossing a short month and stays there.
//
// Next does not validate interval; callers go through NextAfter or check
// interval >= 1 themselves before advancing schedules.
func Next(anchor time.Time, freq Frequency, interval int32) (time.Time, error) {
	n := int(interval)
	switch freq {
	case Daily:
		return anchor.AddDate(0, 0, n), nil
	case Weekly:
		return anchor.AddDate(0, 0, 7*n), nil
	case Monthly:
		return addMonthsClamped(anchor, n), nil
	case Yearly:
		return addMonthsClamped(anchor, 12*n), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized frequency %q", freq)
}

// NextAfter advances from anchor one period at a time until the result is
// strictly after now, and returns it. If anchor is already after now, anchor
// is returned unchanged (a template created with a future start date is first
// due on that start date).
//
// interval < 1 is rejected here, before the loop, so the loop itself can
// never fail to terminate.
func NextAfter(anchor time.Time, freq Frequency, interval int32, now time.Time) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, fmt.Errorf("interval must be at least 1, got %d", interval)
	}
	if !freq.Valid() {
		return time.Time{}, fmt.Errorf("unrecognized frequency %q", freq)
	}

	next := anchor
	for !next.After(now) {
		stepped, err := Next(next, freq, interval)
		if err != nil {
			return time.Time{}, err
		}
		next = stepped
	}
	return next, nil
}

// addMonthsClamped adds months to t, clamping the day to the last valid day
// of the target month instead of letting time.AddDate roll over (Jan 31 + 1
// month must not become Mar 2/3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	// Normalize to the first of the target month, then clamp the day.
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)

	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
