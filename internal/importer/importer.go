// Package importer turns uploaded CSV and iCalendar files into calendar
// events for one family member.
package importer

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukerupert/famsched/internal/model"
	"github.com/google/uuid"
)

// ErrUnsupportedFormat is returned for files that are neither .csv nor .ics.
var ErrUnsupportedFormat = errors.New("unsupported file format, use .csv or .ics")

const (
	// RecurrenceHorizon bounds how far past its first start a recurring
	// iCalendar event is expanded.
	RecurrenceHorizon = 8 * 7 * 24 * time.Hour
	// MaxOccurrences caps the events produced by a single recurring entry.
	MaxOccurrences = 60
)

// Parse reads data according to the extension of filename. Records that are
// missing fields or carry unparseable times are skipped; only an unsupported
// extension fails the whole file. Times without a date are placed on now's
// date in now's location.
func Parse(filename string, data []byte, memberID string, now time.Time) ([]model.FamilyEvent, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(string(data), memberID, now), nil
	case ".ics":
		return parseICS(string(data), memberID, now), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func newEvent(memberID, title, description string, typ model.EventType, start, end time.Time) model.FamilyEvent {
	return model.FamilyEvent{
		ID:          uuid.NewString(),
		MemberID:    memberID,
		Title:       title,
		Description: description,
		Type:        typ,
		StartTime:   start,
		EndTime:     end,
		Status:      model.StatusPending,
	}
}
