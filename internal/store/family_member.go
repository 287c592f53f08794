package store

import (
	"fmt"
	"strings"

	"github.com/dukerupert/famsched/internal/model"
)

type MemberStore struct {
	store         *Store
	notifications *NotificationStore
}

func NewMemberStore(s *Store, notifications *NotificationStore) *MemberStore {
	return &MemberStore{store: s, notifications: notifications}
}

func (m *MemberStore) List() ([]model.Member, error) {
	return load[model.Member](m.store, Members)
}

func (m *MemberStore) GetByID(id string) (*model.Member, error) {
	members, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == id {
			return &members[i], nil
		}
	}
	return nil, nil
}

// FindByName returns the first member whose name matches case-insensitively.
func (m *MemberStore) FindByName(name string) (*model.Member, error) {
	members, err := m.List()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for i := range members {
		if strings.EqualFold(members[i].Name, name) {
			return &members[i], nil
		}
	}
	return nil, nil
}

// Add stamps CreatedAt, appends the member and logs an info notification.
// Id uniqueness is the caller's responsibility.
func (m *MemberStore) Add(member model.Member) (*model.Member, error) {
	if member.ID == "" {
		member.ID = m.store.newID()
	}
	member.CreatedAt = m.store.now()

	err := modify(m.store, Members, func(current []model.Member) ([]model.Member, bool) {
		return append(current, member), true
	})
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	msg := fmt.Sprintf("New member %s was added to the family.", member.Name)
	if err := m.notifications.emit(model.NotificationInfo, msg, ""); err != nil {
		return &member, fmt.Errorf("log member added: %w", err)
	}
	return &member, nil
}

// Update replaces the member with the same id. When no member matches the
// collection is written back unchanged.
func (m *MemberStore) Update(member model.Member) error {
	err := modify(m.store, Members, func(current []model.Member) ([]model.Member, bool) {
		for i := range current {
			if current[i].ID != member.ID {
				continue
			}
			if member.CreatedAt.IsZero() {
				member.CreatedAt = current[i].CreatedAt
			}
			current[i] = member
		}
		return current, true
	})
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}
