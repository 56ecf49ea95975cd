// Package metrics computes project-management reports from tasks and sprints
// that were already loaded. Nothing here performs I/O.
//
// Numeric policy: missing story points count as zero, percentages are whole
// numbers rounded half away from zero, and any ratio over a zero denominator
// is zero.
package metrics

import (
	"math"
	"time"
)

// Percent returns part/whole as a rounded percentage, 0 when whole is not positive.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(math.Round(day(b).Sub(day(a)).Hours() / 24))
}
