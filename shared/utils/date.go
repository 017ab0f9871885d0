package utils

import "time"

// IsYesterdayUTC reports whether t falls on the UTC calendar day immediately
// before now. Time-of-day is ignored on both sides.
func IsYesterdayUTC(t *time.Time, now time.Time) bool {
	if t == nil {
		return false
	}
	day := t.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	return day.Add(24 * time.Hour).Equal(today)
}
