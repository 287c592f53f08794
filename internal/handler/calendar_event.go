package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/famsched/internal/auth"
	"github.com/dukerupert/famsched/internal/importer"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/schedule"
	"github.com/dukerupert/famsched/internal/store"
)

const (
	maxImportSize     = 5 << 20
	manualDescription = "Added manually"
	maxBatchSize      = 500
	maxGeneratePrompt = 2000
)

type EventHandler struct {
	events    *store.EventStore
	members   *store.MemberStore
	generator *schedule.Generator
	logger    *slog.Logger
	now       func() time.Time
}

func NewEventHandler(es *store.EventStore, ms *store.MemberStore, gen *schedule.Generator, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: es, members: ms, generator: gen, logger: logger, now: time.Now}
}

// eventView adds the display-only overdue flag.
type eventView struct {
	model.FamilyEvent
	Overdue bool `json:"overdue"`
}

type eventRequest struct {
	MemberID    string `json:"member_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsRecurring bool   `json:"is_recurring"`
}

// toEvent validates req for ac and builds the event. The returned message is
// user-facing; status is 0 when req is valid.
func (h *EventHandler) toEvent(ac auth.AuthContext, req eventRequest) (model.FamilyEvent, int, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return model.FamilyEvent{}, http.StatusBadRequest, "title is required"
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return model.FamilyEvent{}, http.StatusBadRequest, "start_time must be RFC3339 format"
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return model.FamilyEvent{}, http.StatusBadRequest, "end_time must be RFC3339 format"
	}
	if !start.Before(end) {
		return model.FamilyEvent{}, http.StatusBadRequest, "start_time must be before end_time"
	}

	if req.MemberID == "" {
		req.MemberID = ac.MemberID
	}
	if err := auth.CanModifyEvent(ac, req.MemberID); err != nil {
		return model.FamilyEvent{}, http.StatusForbidden, err.Error()
	}
	member, err := h.members.GetByID(req.MemberID)
	if err != nil {
		return model.FamilyEvent{}, http.StatusInternalServerError, "failed to check family member"
	}
	if member == nil {
		return model.FamilyEvent{}, http.StatusBadRequest, "family member not found"
	}

	return model.FamilyEvent{
		MemberID:    req.MemberID,
		Title:       req.Title,
		Description: req.Description,
		Type:        model.ParseEventType(req.Type),
		StartTime:   start,
		EndTime:     end,
		IsRecurring: req.IsRecurring,
		Status:      model.StatusPending,
	}, 0, ""
}

// List handles GET /api/events. Filter by ?date=YYYY-MM-DD or ?start=&end=;
// children only see their own events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	q := r.URL.Query()

	var (
		events []model.FamilyEvent
		err    error
	)
	switch {
	case q.Get("date") != "":
		day, perr := time.ParseInLocation("2006-01-02", q.Get("date"), time.Local)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD format")
			return
		}
		events, err = h.events.ListByDateRange(day, day.AddDate(0, 0, 1))
	case q.Get("start") != "" || q.Get("end") != "":
		start, perr := parseFlexibleTime(q.Get("start"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
			return
		}
		end, perr := parseFlexibleTime(q.Get("end"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
			return
		}
		events, err = h.events.ListByDateRange(start, end)
	default:
		events, err = h.events.List()
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].StartTime.Before(events[j].StartTime)
		})
	}
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	now := h.now()
	out := []eventView{}
	for _, ev := range events {
		if !auth.CanViewEvent(ac, ev.MemberID) {
			continue
		}
		out = append(out, eventView{FamilyEvent: ev, Overdue: ev.Overdue(now)})
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/events. A single event is stored as a batch of
// one so the family feed records who added it.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	event, status, msg := h.toEvent(ac, req)
	if status != 0 {
		writeError(w, status, msg)
		return
	}
	if event.Description == "" {
		event.Description = manualDescription
	}

	added, err := h.events.AddBatch([]model.FamilyEvent{event}, ac.Name)
	if err != nil && len(added) == 0 {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	if err != nil {
		h.logger.Warn("create event notification", "error", err)
	}
	writeJSON(w, http.StatusCreated, added[0])
}

// Batch handles POST /api/events/batch.
func (h *EventHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	var req struct {
		Events []eventRequest `json:"events"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events are required")
		return
	}
	if len(req.Events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d events per batch", maxBatchSize))
		return
	}

	events := make([]model.FamilyEvent, 0, len(req.Events))
	for i, er := range req.Events {
		event, status, msg := h.toEvent(ac, er)
		if status != 0 {
			writeError(w, status, fmt.Sprintf("event %d: %s", i+1, msg))
			return
		}
		if event.Description == "" {
			event.Description = manualDescription
		}
		events = append(events, event)
	}

	h.addBatch(w, events, ac.Name)
}

// Update handles PUT /api/events/{id}. Status and the completion-alert flag
// are kept; moving the end time re-arms the alert.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	existing, ok := h.lookup(w, r, ac)
	if !ok {
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MemberID == "" {
		req.MemberID = existing.MemberID
	}
	event, status, msg := h.toEvent(ac, req)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	updated, err := h.events.Mutate(existing.ID, func(cur *model.FamilyEvent) bool {
		if !event.EndTime.Equal(cur.EndTime) {
			cur.NotifiedCompletion = false
		}
		cur.MemberID = event.MemberID
		cur.Title = event.Title
		cur.Description = event.Description
		cur.Type = event.Type
		cur.StartTime = event.StartTime
		cur.EndTime = event.EndTime
		cur.IsRecurring = event.IsRecurring
		return true
	})
	if err != nil {
		h.logger.Error("update event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Toggle handles POST /api/events/{id}/toggle.
func (h *EventHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	if _, ok := h.lookup(w, r, ac); !ok {
		return
	}

	event, err := h.events.ToggleStatus(r.PathValue("id"), ac.Member())
	if err != nil && event == nil {
		h.logger.Error("toggle event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if err != nil {
		h.logger.Warn("toggle event notification", "error", err)
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	if _, ok := h.lookup(w, r, ac); !ok {
		return
	}

	if _, err := h.events.Delete(r.PathValue("id"), ac.Name); err != nil {
		h.logger.Error("delete event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/events/import with a multipart "file" field.
func (h *EventHandler) Import(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "file is required (max 5MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	memberID := r.FormValue("member_id")
	if memberID == "" {
		memberID = ac.MemberID
	}
	if err := auth.CanModifyEvent(ac, memberID); err != nil {
		writeForbidden(w, err)
		return
	}

	events, err := importer.Parse(header.Filename, data, memberID, h.now())
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no events found in file")
		return
	}

	h.addBatch(w, events, ac.Name)
}

// Generate handles POST /api/events/generate: the prompt is turned into events
// and stored as one batch.
func (h *EventHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ac := actor(r)
	if h.generator == nil || !h.generator.Configured() {
		writeError(w, http.StatusServiceUnavailable, "schedule generator is not configured")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if len(req.Prompt) > maxGeneratePrompt {
		writeError(w, http.StatusBadRequest, "prompt is too long")
		return
	}

	members, err := h.members.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list family members")
		return
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	now := h.now()
	drafts, err := h.generator.Generate(r.Context(), req.Prompt, members, now)
	if err != nil {
		h.logger.Error("generate schedule", "error", err)
		writeError(w, http.StatusBadGateway, "could not generate a schedule, please try again")
		return
	}

	events := make([]model.FamilyEvent, 0, len(drafts))
	for _, d := range drafts {
		ev := d.ToEvent(ac.MemberID, now)
		if !known[ev.MemberID] || auth.CanModifyEvent(ac, ev.MemberID) != nil {
			ev.MemberID = ac.MemberID
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no events could be generated from that request")
		return
	}

	h.addBatch(w, events, ac.Name)
}

func (h *EventHandler) addBatch(w http.ResponseWriter, events []model.FamilyEvent, author string) {
	added, err := h.events.AddBatch(events, author)
	if err != nil && len(added) == 0 {
		h.logger.Error("add events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add events")
		return
	}
	if err != nil {
		h.logger.Warn("add events notification", "error", err)
	}
	writeJSON(w, http.StatusCreated, added)
}

// lookup loads the event named by the path and checks ac may modify it.
func (h *EventHandler) lookup(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) (*model.FamilyEvent, bool) {
	event, err := h.events.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	if err := auth.CanModifyEvent(ac, event.MemberID); err != nil {
		writeForbidden(w, err)
		return nil, false
	}
	return event, true
}
