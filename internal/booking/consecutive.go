// Package booking contains the reservation admission and transfer control
// logic: the consecutive-day guard, the admission coordinator and the
// transfer workflow. The package consumes storage through small capability
// interfaces so the MySQL repositories can be swapped out in tests.
package booking

import (
	"sort"
	"time"
)

// DayStart strips the time-of-day component, returning UTC midnight for the
// calendar day of t. All date comparisons in this package happen on UTC day
// boundaries.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LongestConsecutiveRun returns the length of the longest unbroken sequence
// of calendar days in dates. Duplicates and time-of-day components are
// ignored, so the result is invariant under reordering and duplicate
// insertion. An empty input yields 1 by convention: callers treat "no
// booking yet" the same as a single-day streak rather than special-casing
// zero.
func LongestConsecutiveRun(dates []time.Time) int {
	uniq := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		uniq[DayStart(d)] = struct{}{}
	}
	days := make([]time.Time, 0, len(uniq))
	for d := range uniq {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest := 1
	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			streak++
		} else {
			streak = 1
		}
		if streak > longest {
			longest = streak
		}
	}
	return longest
}

// WouldExceedConsecutive reports whether adding candidate to the user's
// existing active dates would produce a run longer than maxConsecutive. It
// is pure and side-effect free, which is why the coordinator runs it before
// touching the capacity ledger.
func WouldExceedConsecutive(existing []time.Time, candidate time.Time, maxConsecutive int) bool {
	all := make([]time.Time, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, candidate)
	return LongestConsecutiveRun(all) > maxConsecutive
}
