package model

import (
	"strings"
	"time"
)

type EventType string

const (
	EventStudy           EventType = "STUDY"
	EventExtraCurricular EventType = "EXTRA_CURRICULAR"
	EventMedicine        EventType = "MEDICINE"
	EventActivity        EventType = "ACTIVITY"
	EventOther           EventType = "OTHER"
)

// EventTypes lists every event type in display order.
var EventTypes = []EventType{EventStudy, EventExtraCurricular, EventMedicine, EventActivity, EventOther}

// ParseEventType matches s case-insensitively against the known types,
// falling back to EventOther.
func ParseEventType(s string) EventType {
	s = strings.TrimSpace(s)
	for _, t := range EventTypes {
		if strings.EqualFold(string(t), s) {
			return t
		}
	}
	return EventOther
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	// StatusMissed is a valid stored state but nothing transitions into it.
	StatusMissed Status = "MISSED"
)

type FamilyEvent struct {
	ID                 string    `json:"id"`
	MemberID           string    `json:"member_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Type               EventType `json:"type"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	IsRecurring        bool      `json:"is_recurring"`
	Status             Status    `json:"status"`
	NotifiedCompletion bool      `json:"notified_completion"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
	UpdatedAt          time.Time `json:"updated_at,omitzero"`
}

// Overdue reports whether the event is still pending after its end time.
// It is a display flag only and is never persisted.
func (e FamilyEvent) Overdue(now time.Time) bool {
	return e.Status == StatusPending && now.After(e.EndTime)
}

// NextStatus returns the status a completion toggle moves the event to.
func (e FamilyEvent) NextStatus() Status {
	if e.Status == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}
