package importer

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/recurrence"
)

const icsDescription = "Imported from iCalendar"

type vevent struct {
	summary     string
	description string
	start       time.Time
	end         time.Time
	rrule       string
}

// parseICS reads the VEVENTs of a calendar. Events without SUMMARY, DTSTART
// and DTEND, or that end before they start, are skipped. An RRULE expands
// into one event per occurrence, each marked recurring. A file that is not a
// calendar at all yields no events.
func parseICS(text string, memberID string, now time.Time) []model.FamilyEvent {
	cal, err := ics.ParseCalendar(strings.NewReader(crlf(text)))
	if err != nil {
		return nil
	}

	var events []model.FamilyEvent
	for _, ve := range cal.Events() {
		v, ok := readEvent(ve, now.Location())
		if !ok {
			continue
		}
		events = append(events, expand(v, memberID)...)
	}
	return events
}

func readEvent(ve *ics.VEvent, loc *time.Location) (vevent, bool) {
	var v vevent
	v.summary = textProp(ve, ics.ComponentPropertySummary)
	v.description = textProp(ve, ics.ComponentPropertyDescription)
	if p := ve.GetProperty(ics.ComponentPropertyRrule); p != nil {
		v.rrule = p.Value
	}

	var ok bool
	if v.start, ok = eventTime(ve, ics.ComponentPropertyDtStart, ve.GetStartAt, ve.GetAllDayStartAt, loc); !ok {
		return v, false
	}
	if v.end, ok = eventTime(ve, ics.ComponentPropertyDtEnd, ve.GetEndAt, ve.GetAllDayEndAt, loc); !ok {
		return v, false
	}
	return v, v.summary != "" && v.start.Before(v.end)
}

func textProp(ve *ics.VEvent, prop ics.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(unescape(p.Value))
}

// eventTime reads a DTSTART or DTEND. Values in UTC or with a TZID are
// absolute; floating values are read as wall-clock times in loc.
func eventTime(ve *ics.VEvent, prop ics.ComponentProperty, at, allDay func() (time.Time, error), loc *time.Location) (time.Time, bool) {
	p := ve.GetProperty(prop)
	if p == nil {
		return time.Time{}, false
	}
	t, err := at()
	if err != nil {
		if t, err = allDay(); err != nil {
			return time.Time{}, false
		}
	}

	_, zoned := p.ICalParameters[string(ics.ParameterTzid)]
	if zoned || strings.HasSuffix(strings.ToUpper(p.Value), "Z") {
		return t, true
	}
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, 0, loc), true
}

// crlf normalizes line endings to the CRLF the format requires.
func crlf(text string) string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	return strings.ReplaceAll(text, "\n", "\r\n")
}

func expand(v vevent, memberID string) []model.FamilyEvent {
	description := v.description
	if description == "" {
		description = icsDescription
	}

	if v.rrule == "" {
		return []model.FamilyEvent{newEvent(memberID, v.summary, description, model.EventOther, v.start, v.end)}
	}

	rule, err := recurrence.Parse(v.rrule)
	if err != nil {
		// Keep the first occurrence of a rule we cannot expand.
		ev := newEvent(memberID, v.summary, description, model.EventOther, v.start, v.end)
		ev.IsRecurring = true
		return []model.FamilyEvent{ev}
	}
	if v.description == "" {
		description = icsDescription + " (" + rule.Describe() + ")"
	}

	duration := v.end.Sub(v.start)
	starts := rule.Occurrences(v.start, v.start.Add(RecurrenceHorizon), MaxOccurrences)
	out := make([]model.FamilyEvent, 0, len(starts))
	for _, s := range starts {
		ev := newEvent(memberID, v.summary, description, model.EventOther, s, s.Add(duration))
		ev.IsRecurring = true
		out = append(out, ev)
	}
	return out
}

func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`).Replace(s)
}
