package recurrence

import (
	"sort"
	"time"
)

// Occurrences returns the start times of the rule's occurrences beginning at
// start, in order. It stops at the rule's COUNT or UNTIL, at horizon, or
// after limit results, whichever comes first. start itself is always the
// first occurrence.
func (r Rule) Occurrences(start, horizon time.Time, limit int) []time.Time {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	var out []time.Time
	emit := func(t time.Time) bool {
		if t.Before(start) {
			return true
		}
		if !t.Before(horizon) || (r.Until != nil && t.After(*r.Until)) {
			return false
		}
		out = append(out, t)
		return (r.Count == 0 || len(out) < r.Count) && (limit <= 0 || len(out) < limit)
	}

	// The period cap guards rules whose candidates never reach the horizon.
	for period := 0; period <= 5000; period++ {
		var candidates []time.Time
		switch r.Freq {
		case Daily:
			candidates = []time.Time{start.AddDate(0, 0, period*interval)}
		case Weekly:
			candidates = r.weekCandidates(start, period*interval)
		case Monthly:
			t, ok := addMonthsExact(start, period*interval)
			if !ok {
				continue
			}
			candidates = []time.Time{t}
		case Yearly:
			t, ok := addMonthsExact(start, 12*period*interval)
			if !ok {
				continue
			}
			candidates = []time.Time{t}
		default:
			return out
		}

		for _, t := range candidates {
			if !emit(t) {
				return out
			}
		}
	}
	return out
}

// weekCandidates lists the ByDay dates of the week weeks after start's week,
// at start's time of day.
func (r Rule) weekCandidates(start time.Time, weeks int) []time.Time {
	if len(r.ByDay) == 0 {
		return []time.Time{start.AddDate(0, 0, 7*weeks)}
	}

	monday := start.AddDate(0, 0, 7*weeks-daysSinceMonday(start.Weekday()))
	out := make([]time.Time, 0, len(r.ByDay))
	for _, wd := range r.ByDay {
		out = append(out, monday.AddDate(0, 0, daysSinceMonday(wd)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func daysSinceMonday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// addMonthsExact adds months to t, reporting false when the target month has
// no such day (the 31st in April, Feb 29 in a common year).
func addMonthsExact(t time.Time, months int) (time.Time, bool) {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if day > daysIn(first.Year(), first.Month()) {
		return time.Time{}, false
	}
	return first.AddDate(0, 0, day-1), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
