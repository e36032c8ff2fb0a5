package postgres

import (
	"github.com/dukerupert/skuld/internal/recurrence"
)

// clampLimit keeps page sizes sane; zero or negative selects the default.
func clampLimit(limit int32) int32 {
	const (
		defaultLimit = 50
		maxLimit     = 500
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// recurrenceFrequency converts a stored frequency string without validating
// it; stored rows were validated on write, and the scheduler re-validates
// before advancing so a corrupt row surfaces as a per-template error.
func recurrenceFrequency(s string) recurrence.Frequency {
	return recurrence.Frequency(s)
}
