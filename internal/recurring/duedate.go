// Package recurring implements the recurring transaction scheduler: the
// due-date calculator, the per-rule processor and the sweep runner that
// together turn recurring rules into concrete ledger transactions.
package recurring

import (
	"time"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
)

// NextDueDate computes a rule's next occurrence strictly after current.
//
// Occurrences are spaced from the theoretical schedule (the rule's current
// due date), never from processing time, so a late sweep does not shift
// future occurrences. Pure function, no I/O.
func NextDueDate(current time.Time, frequency domain.FrequencyType, interval int, dayOfMonth *int) (time.Time, error) {
	// Frequency intervals are positive; guard against bad rows.
	if interval < 1 {
		interval = 1
	}

	switch frequency {
	case domain.FrequencyDaily:
		return current.AddDate(0, 0, interval), nil

	case domain.FrequencyWeekly:
		return current.AddDate(0, 0, 7*interval), nil

	case domain.FrequencyMonthly:
		return nextMonthly(current, interval, dayOfMonth), nil

	case domain.FrequencyYearly:
		return current.AddDate(interval, 0, 0), nil

	default:
		return time.Time{}, &domain.UnsupportedFrequencyError{Frequency: frequency}
	}
}

// nextMonthly advances by whole calendar months and pins the day-of-month.
//
// Days 29-31 do not exist in every month, so a requested day above 28 is
// clamped to the last valid day of the target month (Jan 31 -> Feb 29 in a
// leap year). A requested day of 28 or below is applied verbatim, which also
// corrects drift introduced by earlier short months.
func nextMonthly(current time.Time, interval int, dayOfMonth *int) time.Time {
	year, month, day := current.Date()

	// Normalize the month arithmetic through time.Date: month+interval may
	// exceed December, which time.Date rolls into the following years.
	target := time.Date(year, month+time.Month(interval), 1,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(), current.Location())

	lastDay := daysInMonth(target.Year(), target.Month())

	switch {
	case dayOfMonth != nil && *dayOfMonth > 28:
		day = min(*dayOfMonth, lastDay)
	case dayOfMonth != nil:
		day = *dayOfMonth
	default:
		day = min(day, lastDay)
	}

	return time.Date(target.Year(), target.Month(), day,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(), current.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
