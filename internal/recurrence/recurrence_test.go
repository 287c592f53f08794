package recurrence

import (
	"testing"
	"time"
)

func TestParseFreqOnly(t *testing.T) {
	tests := []struct {
		input string
		freq  Freq
	}{
		{"FREQ=DAILY", Daily},
		{"FREQ=WEEKLY", Weekly},
		{"FREQ=MONTHLY", Monthly},
		{"FREQ=YEARLY", Yearly},
		{"RRULE:FREQ=WEEKLY", Weekly},
		{"freq=daily", Daily},
	}

	for _, tt := range tests {
		r, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if r.Freq != tt.freq {
			t.Errorf("Parse(%q).Freq = %d, want %d", tt.input, r.Freq, tt.freq)
		}
		if r.Interval != 1 {
			t.Errorf("Parse(%q).Interval = %d, want 1", tt.input, r.Interval)
		}
	}
}

func TestParseWithByDay(t *testing.T) {
	r, err := Parse("FREQ=WEEKLY;BYDAY=MO,WE,1FR;WKST=SU")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if len(r.ByDay) != len(want) {
		t.Fatalf("ByDay len = %d, want %d", len(r.ByDay), len(want))
	}
	for i, d := range r.ByDay {
		if d != want[i] {
			t.Errorf("ByDay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestParseWithUntil(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"FREQ=WEEKLY;UNTIL=20260301T000000Z", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"FREQ=WEEKLY;UNTIL=20260301", time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		r, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.input, err)
		}
		if r.Until == nil || !r.Until.Equal(tt.want) {
			t.Errorf("Parse(%q).Until = %v, want %v", tt.input, r.Until, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"BYDAY=MO", // no FREQ
		"FREQ=HOURLY",
		"FREQ=WEEKLY;INTERVAL=0",
		"FREQ=WEEKLY;BYDAY=XX",
		"FREQ=DAILY;COUNT=0",
		"FREQ=DAILY;UNTIL=soon",
		"FREQ",
	}

	for _, input := range tests {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should error", input)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"FREQ=DAILY", "Repeats every day"},
		{"FREQ=DAILY;INTERVAL=3", "Repeats every 3 days"},
		{"FREQ=WEEKLY;BYDAY=TU,TH", "Repeats every week on Tue, Thu"},
		{"FREQ=WEEKLY;INTERVAL=2", "Repeats every 2 weeks"},
		{"FREQ=MONTHLY", "Repeats every month"},
		{"FREQ=YEARLY", "Repeats every year"},
	}
	for _, tt := range tests {
		r, _ := Parse(tt.rule)
		if got := r.Describe(); got != tt.want {
			t.Errorf("Describe(%q) = %q, want %q", tt.rule, got, tt.want)
		}
	}
}

func d(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func occurrences(t *testing.T, rule string, start, horizon time.Time, limit int) []time.Time {
	t.Helper()
	r, err := Parse(rule)
	if err != nil {
		t.Fatalf("Parse(%q): %v", rule, err)
	}
	return r.Occurrences(start, horizon, limit)
}

func assertTimes(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOccurrencesDaily(t *testing.T) {
	got := occurrences(t, "FREQ=DAILY", d(2026, 2, 1, 9), d(2026, 2, 4, 0), 0)
	assertTimes(t, got, []time.Time{d(2026, 2, 1, 9), d(2026, 2, 2, 9), d(2026, 2, 3, 9)})
}

func TestOccurrencesCount(t *testing.T) {
	got := occurrences(t, "FREQ=DAILY;INTERVAL=2;COUNT=3", d(2026, 2, 1, 9), d(2027, 1, 1, 0), 0)
	assertTimes(t, got, []time.Time{d(2026, 2, 1, 9), d(2026, 2, 3, 9), d(2026, 2, 5, 9)})
}

func TestOccurrencesUntil(t *testing.T) {
	got := occurrences(t, "FREQ=WEEKLY;UNTIL=20260215T090000Z", d(2026, 2, 1, 9), d(2027, 1, 1, 0), 0)
	assertTimes(t, got, []time.Time{d(2026, 2, 1, 9), d(2026, 2, 8, 9), d(2026, 2, 15, 9)})
}

func TestOccurrencesLimit(t *testing.T) {
	got := occurrences(t, "FREQ=DAILY", d(2026, 2, 1, 9), d(2027, 1, 1, 0), 5)
	if len(got) != 5 {
		t.Errorf("got %d occurrences, want 5", len(got))
	}
}

func TestOccurrencesWeeklyByDay(t *testing.T) {
	// 2026-02-04 is a Wednesday; the Monday of that week is skipped.
	got := occurrences(t, "FREQ=WEEKLY;BYDAY=MO,WE,FR", d(2026, 2, 4, 16), d(2026, 2, 11, 0), 0)
	assertTimes(t, got, []time.Time{
		d(2026, 2, 4, 16),
		d(2026, 2, 6, 16),
		d(2026, 2, 9, 16),
	})
}

func TestOccurrencesBiweeklySunday(t *testing.T) {
	// Sunday sorts last within its Monday-based week.
	got := occurrences(t, "FREQ=WEEKLY;INTERVAL=2;BYDAY=SU,SA", d(2026, 2, 7, 10), d(2026, 2, 23, 0), 0)
	assertTimes(t, got, []time.Time{
		d(2026, 2, 7, 10),
		d(2026, 2, 8, 10),
		d(2026, 2, 21, 10),
		d(2026, 2, 22, 10),
	})
}

func TestOccurrencesMonthlySkipsShortMonths(t *testing.T) {
	got := occurrences(t, "FREQ=MONTHLY", d(2026, 1, 31, 8), d(2026, 6, 1, 0), 0)
	assertTimes(t, got, []time.Time{d(2026, 1, 31, 8), d(2026, 3, 31, 8), d(2026, 5, 31, 8)})
}

func TestOccurrencesYearlyLeapDay(t *testing.T) {
	got := occurrences(t, "FREQ=YEARLY", d(2024, 2, 29, 12), d(2033, 1, 1, 0), 0)
	assertTimes(t, got, []time.Time{d(2024, 2, 29, 12), d(2028, 2, 29, 12), d(2032, 2, 29, 12)})
}

func TestOccurrencesHorizonBeforeStart(t *testing.T) {
	got := occurrences(t, "FREQ=DAILY", d(2026, 2, 1, 9), d(2026, 1, 1, 0), 0)
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestDescribeUnknownFreq(t *testing.T) {
	if got := (Rule{Freq: Freq(9)}).Describe(); got != "" {
		t.Errorf("Describe() = %q, want empty", got)
	}
}
