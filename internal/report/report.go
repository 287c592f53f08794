// Package report computes the family completion statistics.
package report

import (
	"time"

	"github.com/dukerupert/famsched/internal/model"
)

type MemberStats struct {
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Missed    int    `json:"missed"`
	Rate      int    `json:"rate"` // percent, rounded
}

type TypeCount struct {
	Type  model.EventType `json:"type"`
	Count int             `json:"count"`
}

type Summary struct {
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	Pending        int           `json:"pending"`
	Missed         int           `json:"missed"`
	Overdue        int           `json:"overdue"`
	CompletionRate int           `json:"completion_rate"`
	Members        []MemberStats `json:"members"`
	Types          []TypeCount   `json:"types"`
	TopPerformer   string        `json:"top_performer,omitempty"`
	NoEvents       []string      `json:"no_events"`
}

// Summarize builds the statistics for members over events. Overdue counts
// pending events that ended before now; it is never written back.
func Summarize(members []model.Member, events []model.FamilyEvent, now time.Time) Summary {
	s := Summary{
		Total:    len(events),
		Members:  make([]MemberStats, 0, len(members)),
		Types:    []TypeCount{},
		NoEvents: []string{},
	}

	byMember := make(map[string]*MemberStats, len(members))
	for _, m := range members {
		s.Members = append(s.Members, MemberStats{MemberID: m.ID, Name: m.Name})
	}
	for i := range s.Members {
		byMember[s.Members[i].MemberID] = &s.Members[i]
	}

	typeCounts := make(map[model.EventType]int)
	for _, ev := range events {
		switch ev.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusMissed:
			s.Missed++
		default:
			s.Pending++
		}
		if ev.Overdue(now) {
			s.Overdue++
		}
		typeCounts[ev.Type]++

		ms, ok := byMember[ev.MemberID]
		if !ok {
			continue
		}
		ms.Total++
		switch ev.Status {
		case model.StatusCompleted:
			ms.Completed++
		case model.StatusMissed:
			ms.Missed++
		}
	}
	s.CompletionRate = percent(s.Completed, s.Total)

	for _, t := range model.EventTypes {
		if n := typeCounts[t]; n > 0 {
			s.Types = append(s.Types, TypeCount{Type: t, Count: n})
		}
	}

	var top *MemberStats
	for i := range s.Members {
		ms := &s.Members[i]
		ms.Rate = percent(ms.Completed, ms.Total)
		if ms.Total == 0 {
			s.NoEvents = append(s.NoEvents, ms.Name)
			continue
		}
		if top == nil || ms.Completed > top.Completed {
			top = ms
		}
	}
	if top != nil {
		s.TopPerformer = top.Name
	}

	return s
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
