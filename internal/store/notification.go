package store

import (
	"github.com/dukerupert/famsched/internal/model"
)

type NotificationStore struct {
	store *Store
}

func NewNotificationStore(s *Store) *NotificationStore {
	return &NotificationStore{store: s}
}

// List returns notifications newest-first by insertion order.
func (n *NotificationStore) List() ([]model.SystemNotification, error) {
	return load[model.SystemNotification](n.store, Notifications)
}

// Add prepends notif. Insertion order, not Timestamp, defines display order.
func (n *NotificationStore) Add(notif model.SystemNotification) error {
	if notif.ID == "" {
		notif.ID = n.store.newID()
	}
	if notif.Timestamp.IsZero() {
		notif.Timestamp = n.store.now()
	}
	return modify(n.store, Notifications, func(current []model.SystemNotification) ([]model.SystemNotification, bool) {
		return append([]model.SystemNotification{notif}, current...), true
	})
}

// MarkAllRead sets IsRead on every notification in a single write.
func (n *NotificationStore) MarkAllRead() error {
	return modify(n.store, Notifications, func(current []model.SystemNotification) ([]model.SystemNotification, bool) {
		for i := range current {
			current[i].IsRead = true
		}
		return current, true
	})
}

func (n *NotificationStore) UnreadCount() (int, error) {
	notifs, err := n.List()
	if err != nil {
		return 0, err
	}
	var count int
	for _, notif := range notifs {
		if !notif.IsRead {
			count++
		}
	}
	return count, nil
}

func (n *NotificationStore) emit(typ model.NotificationType, message, relatedMemberID string) error {
	return n.Add(model.SystemNotification{
		Message:         message,
		Type:            typ,
		RelatedMemberID: relatedMemberID,
	})
}
