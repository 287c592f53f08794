package store

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/famsched/internal/model"
)

func setupEventStore(t *testing.T) (*EventStore, *NotificationStore, *SQLiteMedium) {
	t.Helper()
	s, medium := setupTestStore(t)
	notifications := NewNotificationStore(s)
	return NewEventStore(s, notifications), notifications, medium
}

func sampleEvent(title, memberID string) model.FamilyEvent {
	return model.FamilyEvent{
		MemberID:  memberID,
		Title:     title,
		Type:      model.EventStudy,
		StartTime: time.Date(2026, 2, 5, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 5, 15, 0, 0, 0, time.UTC),
	}
}

func TestAddEvent(t *testing.T) {
	es, ns, _ := setupEventStore(t)

	event, err := es.Add(sampleEvent("Math", "3"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if event.ID == "" {
		t.Error("expected generated id")
	}
	if event.Status != model.StatusPending {
		t.Errorf("status = %q, want PENDING", event.Status)
	}
	if !event.CreatedAt.Equal(fixedNow) || !event.UpdatedAt.Equal(fixedNow) {
		t.Errorf("timestamps = %v/%v, want %v", event.CreatedAt, event.UpdatedAt, fixedNow)
	}

	got, err := es.GetByID(event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "Math" {
		t.Fatalf("got %+v, want Math", got)
	}

	notifs, _ := ns.List()
	if len(notifs) != 0 {
		t.Errorf("single add logged %d notifications, want 0", len(notifs))
	}
}

func TestGetEventNotFound(t *testing.T) {
	es, _, _ := setupEventStore(t)

	got, err := es.GetByID("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestAddBatchSingleNotification(t *testing.T) {
	es, ns, _ := setupEventStore(t)

	batch := []model.FamilyEvent{
		sampleEvent("Math", "3"),
		sampleEvent("Piano", "3"),
		sampleEvent("Vitamins", "4"),
		sampleEvent("Soccer", "4"),
	}

	var writes int
	es.store.Subscribe(func() { writes++ })

	added, err := es.AddBatch(batch, "Mom")
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if len(added) != 4 {
		t.Fatalf("added = %d, want 4", len(added))
	}

	events, _ := es.List()
	if len(events) != 4 {
		t.Errorf("events = %d, want 4", len(events))
	}
	for _, ev := range events {
		if !ev.CreatedAt.Equal(fixedNow) || !ev.UpdatedAt.Equal(fixedNow) {
			t.Errorf("event %q not stamped", ev.Title)
		}
	}

	notifs, _ := ns.List()
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	n := notifs[0]
	if n.Type != model.NotificationSuccess {
		t.Errorf("type = %q, want success", n.Type)
	}
	if !strings.Contains(n.Message, "Mom") || !strings.Contains(n.Message, "4") {
		t.Errorf("message %q should name author and count", n.Message)
	}
	if n.RelatedMemberID != "3" {
		t.Errorf("related member = %q, want 3", n.RelatedMemberID)
	}

	// One events write plus one notifications write.
	if writes != 2 {
		t.Errorf("writes = %d, want 2", writes)
	}
}

func TestAddBatchEmpty(t *testing.T) {
	es, ns, _ := setupEventStore(t)

	added, err := es.AddBatch(nil, "Mom")
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("added = %d, want 0", len(added))
	}
	notifs, _ := ns.List()
	if len(notifs) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifs))
	}
}

func TestUpdateEventRefreshesUpdatedAt(t *testing.T) {
	es, _, _ := setupEventStore(t)

	event, _ := es.Add(sampleEvent("Math", "3"))

	later := fixedNow.Add(time.Hour)
	es.store.SetClock(func() time.Time { return later })

	event.Title = "Math homework"
	if err := es.Update(*event); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := es.GetByID(event.ID)
	if got.Title != "Math homework" {
		t.Errorf("title = %q", got.Title)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, later)
	}
	if !got.CreatedAt.Equal(fixedNow) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, fixedNow)
	}
}

func TestUpdateMissingEventStillWrites(t *testing.T) {
	es, _, _ := setupEventStore(t)
	es.Add(sampleEvent("Math", "3"))

	var writes int
	es.store.Subscribe(func() { writes++ })

	if err := es.Update(model.FamilyEvent{ID: "missing", Title: "Ghost"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	events, _ := es.List()
	if len(events) != 1 || events[0].Title != "Math" {
		t.Errorf("events = %+v, want unchanged", events)
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}
}

func TestDeleteEvent(t *testing.T) {
	es, ns, _ := setupEventStore(t)
	event, _ := es.Add(sampleEvent("Piano", "3"))

	deleted, err := es.Delete(event.ID, "Dad")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected deleted = true")
	}

	got, _ := es.GetByID(event.ID)
	if got != nil {
		t.Error("event should be gone")
	}

	notifs, _ := ns.List()
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	if notifs[0].Type != model.NotificationWarning {
		t.Errorf("type = %q, want warning", notifs[0].Type)
	}
	if !strings.Contains(notifs[0].Message, "Dad") || !strings.Contains(notifs[0].Message, "Piano") {
		t.Errorf("message %q should name author and title", notifs[0].Message)
	}
}

// Deleting an unknown id is silently ignored; nothing is written.
func TestDeleteMissingEventLeavesStoreUnchanged(t *testing.T) {
	es, ns, medium := setupEventStore(t)
	es.Add(sampleEvent("Piano", "3"))

	before, _, _ := medium.Load(string(Events))

	var writes int
	es.store.Subscribe(func() { writes++ })

	deleted, err := es.Delete("does-not-exist", "Dad")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Error("expected deleted = false")
	}

	after, _, _ := medium.Load(string(Events))
	if string(before) != string(after) {
		t.Errorf("events payload changed:\nbefore %s\nafter  %s", before, after)
	}
	if writes != 0 {
		t.Errorf("writes = %d, want 0", writes)
	}
	notifs, _ := ns.List()
	if len(notifs) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifs))
	}
}

func TestToggleStatus(t *testing.T) {
	es, ns, _ := setupEventStore(t)
	event, _ := es.Add(sampleEvent("Homework", "3"))
	actor := model.Member{ID: "3", Name: "Uyen", Role: model.RoleChild}

	got, err := es.ToggleStatus(event.ID, actor)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want COMPLETED", got.Status)
	}

	notifs, _ := ns.List()
	if len(notifs) != 1 || notifs[0].RelatedMemberID != "3" {
		t.Fatalf("notifications = %+v, want one completion by member 3", notifs)
	}

	got, err = es.ToggleStatus(event.ID, actor)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want PENDING", got.Status)
	}
	notifs, _ = ns.List()
	if len(notifs) != 1 {
		t.Errorf("reopening logged a notification; got %d", len(notifs))
	}
}

func TestToggleStatusMissing(t *testing.T) {
	es, _, _ := setupEventStore(t)

	got, err := es.ToggleStatus("missing", model.Member{Name: "Dad"})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing event")
	}
}

func TestListByDateRange(t *testing.T) {
	es, _, _ := setupEventStore(t)

	day1 := sampleEvent("Day 1 late", "3")
	day1.StartTime = time.Date(2026, 2, 5, 18, 0, 0, 0, time.UTC)
	day1Early := sampleEvent("Day 1 early", "3")
	day1Early.StartTime = time.Date(2026, 2, 5, 8, 0, 0, 0, time.UTC)
	day2 := sampleEvent("Day 2", "3")
	day2.StartTime = time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)
	es.AddBatch([]model.FamilyEvent{day1, day1Early, day2}, "Mom")

	start := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	events, err := es.ListByDateRange(start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Title != "Day 1 early" || events[1].Title != "Day 1 late" {
		t.Errorf("order = %q, %q", events[0].Title, events[1].Title)
	}
}

func TestMutateEvent(t *testing.T) {
	es, _, _ := setupEventStore(t)
	event, _ := es.Add(sampleEvent("Math", "3"))
	var writes int
	es.store.Subscribe(func() { writes++ })

	got, err := es.Mutate(event.ID, func(ev *model.FamilyEvent) bool {
		ev.Title = "Algebra"
		ev.ID = "hijacked"
		return true
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got == nil || got.Title != "Algebra" || got.ID != event.ID {
		t.Fatalf("got %+v, want Algebra with id %s", got, event.ID)
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}

	unchanged, err := es.Mutate(event.ID, func(*model.FamilyEvent) bool { return false })
	if err != nil {
		t.Fatalf("mutate no-op: %v", err)
	}
	if unchanged == nil || unchanged.Title != "Algebra" {
		t.Errorf("no-op mutate returned %+v", unchanged)
	}
	if writes != 1 {
		t.Error("no-op mutate should not write")
	}

	missing, err := es.Mutate("nope", func(*model.FamilyEvent) bool { return true })
	if err != nil || missing != nil {
		t.Errorf("missing = %+v, %v; want nil, nil", missing, err)
	}
}

func TestConcurrentTogglesAreNotLost(t *testing.T) {
	es, _, _ := setupEventStore(t)
	event, _ := es.Add(sampleEvent("Math", "3"))
	actor := model.Member{ID: "1", Name: "Dad"}

	const toggles = 200
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < toggles/2; i++ {
				if _, err := es.ToggleStatus(event.ID, actor); err != nil {
					t.Errorf("toggle: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := es.GetByID(event.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status after %d toggles = %q, want PENDING", toggles, got.Status)
	}
}
