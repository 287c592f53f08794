package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/famsched/internal/model"
)

const csvDescription = "Imported from CSV"

var csvLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseCSV reads rows of Title, Start, End[, Type[, Description]]. A first
// line mentioning "title" is treated as a header. Rows that do not end after
// they start are skipped.
func parseCSV(text string, memberID string, now time.Time) []model.FamilyEvent {
	if first, _, _ := strings.Cut(text, "\n"); strings.Contains(strings.ToLower(first), "title") {
		_, text, _ = strings.Cut(text, "\n")
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var events []model.FamilyEvent
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(row) < 3 {
			continue
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}

		title := row[0]
		start, ok := parseCSVTime(row[1], now)
		if !ok || title == "" {
			continue
		}
		end, ok := parseCSVTime(row[2], now)
		if !ok || !start.Before(end) {
			continue
		}

		typ := model.EventOther
		if len(row) > 3 {
			typ = model.ParseEventType(row[3])
		}
		description := csvDescription
		if len(row) > 4 && row[4] != "" {
			description = row[4]
		}

		events = append(events, newEvent(memberID, title, description, typ, start, end))
	}
	return events
}

// parseCSVTime accepts full timestamps or a bare HH:mm clock time.
func parseCSVTime(s string, now time.Time) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, ":") && !strings.ContainsAny(s, "T -") {
		return clockOn(s, now)
	}
	for _, layout := range csvLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clockOn(s string, now time.Time) (time.Time, bool) {
	hs, ms, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, false
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, h, m, 0, 0, now.Location()), true
}
