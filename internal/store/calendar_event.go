package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/famsched/internal/model"
)

type EventStore struct {
	store         *Store
	notifications *NotificationStore
}

func NewEventStore(s *Store, notifications *NotificationStore) *EventStore {
	return &EventStore{store: s, notifications: notifications}
}

func (e *EventStore) List() ([]model.FamilyEvent, error) {
	return load[model.FamilyEvent](e.store, Events)
}

func (e *EventStore) GetByID(id string) (*model.FamilyEvent, error) {
	events, err := e.List()
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}
	return nil, nil
}

// ListByDateRange returns events starting in [start, end), ordered by start time.
func (e *EventStore) ListByDateRange(start, end time.Time) ([]model.FamilyEvent, error) {
	events, err := e.List()
	if err != nil {
		return nil, err
	}

	var out []model.FamilyEvent
	for _, ev := range events {
		if !ev.StartTime.Before(start) && ev.StartTime.Before(end) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// Add stamps and appends a single event without logging a notification.
func (e *EventStore) Add(event model.FamilyEvent) (*model.FamilyEvent, error) {
	event = e.stamp(event)
	err := modify(e.store, Events, func(current []model.FamilyEvent) ([]model.FamilyEvent, bool) {
		return append(current, event), true
	})
	if err != nil {
		return nil, fmt.Errorf("add event: %w", err)
	}
	return &event, nil
}

// AddBatch appends all events in one write and logs exactly one success
// notification naming the author and the batch size. An empty batch is a no-op.
func (e *EventStore) AddBatch(events []model.FamilyEvent, authorName string) ([]model.FamilyEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	added := make([]model.FamilyEvent, len(events))
	for i, ev := range events {
		added[i] = e.stamp(ev)
	}

	err := modify(e.store, Events, func(current []model.FamilyEvent) ([]model.FamilyEvent, bool) {
		return append(current, added...), true
	})
	if err != nil {
		return nil, fmt.Errorf("add event batch: %w", err)
	}

	msg := fmt.Sprintf("%s added %d new events to the schedule.", authorName, len(added))
	if err := e.notifications.emit(model.NotificationSuccess, msg, added[0].MemberID); err != nil {
		return added, fmt.Errorf("log event batch: %w", err)
	}
	return added, nil
}

// Update refreshes UpdatedAt and replaces the event with the same id. When
// no event matches the collection is written back unchanged.
func (e *EventStore) Update(event model.FamilyEvent) error {
	event.UpdatedAt = e.store.now()
	err := modify(e.store, Events, func(current []model.FamilyEvent) ([]model.FamilyEvent, bool) {
		for i := range current {
			if current[i].ID == event.ID {
				current[i] = event
			}
		}
		return current, true
	})
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Mutate applies fn to the stored event with the given id inside a single
// read-modify-write, so changes made by other writers since the caller last
// read the event are kept. fn reports whether anything changed; when it
// returns false nothing is written. Returns the event as stored afterwards,
// or nil when no event has the id.
func (e *EventStore) Mutate(id string, fn func(*model.FamilyEvent) bool) (*model.FamilyEvent, error) {
	var result *model.FamilyEvent
	err := modify(e.store, Events, func(current []model.FamilyEvent) ([]model.FamilyEvent, bool) {
		for i := range current {
			if current[i].ID != id {
				continue
			}
			changed := fn(&current[i])
			if changed {
				current[i].ID = id
				current[i].UpdatedAt = e.store.now()
			}
			ev := current[i]
			result = &ev
			return current, changed
		}
		return current, false
	})
	if err != nil {
		return nil, fmt.Errorf("mutate event: %w", err)
	}
	return result, nil
}

// ToggleStatus flips an event between PENDING and COMPLETED. Completing logs a
// success notification naming actor. Returns nil when the event does not exist.
func (e *EventStore) ToggleStatus(id string, actor model.Member) (*model.FamilyEvent, error) {
	event, err := e.Mutate(id, func(ev *model.FamilyEvent) bool {
		ev.Status = ev.NextStatus()
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("toggle event: %w", err)
	}
	if event == nil {
		return nil, nil
	}

	if event.Status == model.StatusCompleted {
		msg := fmt.Sprintf("%s completed: %s", actor.Name, event.Title)
		if err := e.notifications.emit(model.NotificationSuccess, msg, actor.ID); err != nil {
			return event, fmt.Errorf("log completion: %w", err)
		}
	}
	return event, nil
}

// Delete removes the event and logs a warning naming the author. Deleting an
// unknown id writes nothing and reports false.
func (e *EventStore) Delete(id, authorName string) (bool, error) {
	var deleted *model.FamilyEvent
	err := modify(e.store, Events, func(current []model.FamilyEvent) ([]model.FamilyEvent, bool) {
		kept := current[:0:0]
		for i := range current {
			if current[i].ID == id {
				if deleted == nil {
					ev := current[i]
					deleted = &ev
				}
				continue
			}
			kept = append(kept, current[i])
		}
		return kept, deleted != nil
	})
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	if deleted == nil {
		return false, nil
	}

	msg := fmt.Sprintf("%s deleted event %q.", authorName, deleted.Title)
	if err := e.notifications.emit(model.NotificationWarning, msg, ""); err != nil {
		return true, fmt.Errorf("log event deleted: %w", err)
	}
	return true, nil
}

func (e *EventStore) stamp(event model.FamilyEvent) model.FamilyEvent {
	if event.ID == "" {
		event.ID = e.store.newID()
	}
	if event.Status == "" {
		event.Status = model.StatusPending
	}
	if event.Type == "" {
		event.Type = model.EventOther
	}
	now := e.store.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	return event
}
