package booking

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLongestConsecutiveRunEmptyInput(t *testing.T) {
	if got := LongestConsecutiveRun(nil); got != 1 {
		t.Fatalf("empty input: got %d, want 1", got)
	}
}

func TestLongestConsecutiveRunSingleDay(t *testing.T) {
	if got := LongestConsecutiveRun([]time.Time{day(2026, time.January, 24)}); got != 1 {
		t.Fatalf("single day: got %d, want 1", got)
	}
}

func TestLongestConsecutiveRunGaps(t *testing.T) {
	dates := []time.Time{
		day(2026, time.January, 24),
		day(2026, time.January, 25),
		day(2026, time.January, 27), // gap at the 26th
		day(2026, time.January, 28),
		day(2026, time.January, 29),
	}
	if got := LongestConsecutiveRun(dates); got != 3 {
		t.Fatalf("gapped set: got %d, want 3", got)
	}
}

func TestLongestConsecutiveRunOrderAndDuplicatesIrrelevant(t *testing.T) {
	shuffled := []time.Time{
		day(2026, time.January, 26),
		day(2026, time.January, 24),
		day(2026, time.January, 25),
		day(2026, time.January, 24), // duplicate
		day(2026, time.January, 25).Add(13 * time.Hour), // same day, different time
	}
	if got := LongestConsecutiveRun(shuffled); got != 3 {
		t.Fatalf("shuffled with duplicates: got %d, want 3", got)
	}
}

func TestWouldExceedConsecutive(t *testing.T) {
	existing := []time.Time{
		day(2026, time.January, 24),
		day(2026, time.January, 25),
	}

	// A third consecutive day reaches the limit but does not exceed it.
	if WouldExceedConsecutive(existing, day(2026, time.January, 26), 3) {
		t.Fatalf("third consecutive day must be allowed at max=3")
	}

	// Extending to a fourth day breaks the limit.
	withThird := append(existing, day(2026, time.January, 26))
	if !WouldExceedConsecutive(withThird, day(2026, time.January, 27), 3) {
		t.Fatalf("fourth consecutive day must be rejected at max=3")
	}

	// Filling a gap that joins two runs into one long run is also rejected.
	split := []time.Time{
		day(2026, time.February, 1),
		day(2026, time.February, 2),
		day(2026, time.February, 4),
		day(2026, time.February, 5),
	}
	if !WouldExceedConsecutive(split, day(2026, time.February, 3), 3) {
		t.Fatalf("bridging two runs into five days must be rejected at max=3")
	}

	// A candidate far from every existing date never exceeds.
	if WouldExceedConsecutive(withThird, day(2026, time.March, 10), 3) {
		t.Fatalf("isolated day must always be allowed")
	}
}

func TestWouldExceedConsecutiveFirstBooking(t *testing.T) {
	// No existing dates: the candidate alone is a run of one.
	if WouldExceedConsecutive(nil, day(2026, time.January, 24), 3) {
		t.Fatalf("first booking must be allowed")
	}
}

func TestDayStartNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, time.January, 24, 2, 30, 0, 0, loc) // Jan 23 21:30 UTC
	got := DayStart(in)
	want := day(2026, time.January, 23)
	if !got.Equal(want) {
		t.Fatalf("DayStart = %s, want %s", got, want)
	}
}
