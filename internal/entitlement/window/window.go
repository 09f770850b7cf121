// Package window computes quota window boundaries. All calendar
// comparisons are performed in UTC: daily, monthly and yearly cadences
// compare calendar day/month/year rather than fixed-size buckets, while
// weekly uses a rolling seven-day span.
package window

import (
	"time"

	"github.com/gradpath/gradpath/internal/catalog"
)

// NeedsReset reports whether the window that began at windowStart has
// elapsed at now. A now earlier than windowStart (device clock reset,
// skewed replica) never triggers a reset.
func NeedsReset(now, windowStart time.Time, period catalog.ResetPeriod) bool {
	now = now.UTC()
	windowStart = windowStart.UTC()
	if now.Before(windowStart) {
		return false
	}

	switch period {
	case catalog.ResetNever:
		return false
	case catalog.ResetDaily:
		return !sameDay(now, windowStart)
	case catalog.ResetWeekly:
		return now.Sub(windowStart) >= 7*24*time.Hour
	case catalog.ResetMonthly:
		return now.Year() != windowStart.Year() || now.Month() != windowStart.Month()
	case catalog.ResetYearly:
		return now.Year() != windowStart.Year()
	default:
		return false
	}
}

// NextWindowStart returns when the current window rolls over. For weekly
// cadence the boundary is anchored to windowStart; for the calendar
// cadences it is the next UTC day/month/year boundary after now. The zero
// time is returned for a never-resetting window.
func NextWindowStart(now, windowStart time.Time, period catalog.ResetPeriod) time.Time {
	now = now.UTC()
	windowStart = windowStart.UTC()

	switch period {
	case catalog.ResetNever:
		return time.Time{}
	case catalog.ResetDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case catalog.ResetWeekly:
		next := windowStart.Add(7 * 24 * time.Hour)
		for !next.After(now) {
			next = next.Add(7 * 24 * time.Hour)
		}
		return next
	case catalog.ResetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	case catalog.ResetYearly:
		return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
