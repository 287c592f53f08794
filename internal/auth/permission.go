package auth

import (
	"errors"
	"strings"

	"github.com/dukerupert/famsched/internal/model"
)

var (
	// ErrForbidden is returned when the acting member may not perform the change.
	ErrForbidden = errors.New("you do not have permission to do that")
	// ErrInvalidCredentials is returned when a name and password do not match.
	ErrInvalidCredentials = errors.New("invalid name or password")
)

// Authenticate finds the member named name and checks password. Members
// without a password accept any password.
func Authenticate(members []model.Member, name, password string) (*model.Member, error) {
	name = strings.TrimSpace(name)
	for i := range members {
		m := &members[i]
		if !strings.EqualFold(m.Name, name) {
			continue
		}
		if m.Password != "" && m.Password != password {
			return nil, ErrInvalidCredentials
		}
		return m, nil
	}
	return nil, ErrInvalidCredentials
}

// CanEditMember reports whether actor may change target's profile. Parents
// may edit anyone; everyone may edit themselves.
func CanEditMember(actor AuthContext, targetID string) error {
	if actor.Role == model.RoleParent || actor.MemberID == targetID {
		return nil
	}
	return ErrForbidden
}

// CanAddMember reports whether actor may add members to the family.
func CanAddMember(actor AuthContext) error {
	if actor.Role == model.RoleParent {
		return nil
	}
	return ErrForbidden
}

// CanModifyEvent reports whether actor may create, change or delete an event
// belonging to memberID. Children only manage their own events.
func CanModifyEvent(actor AuthContext, memberID string) error {
	if actor.Role == model.RoleParent || actor.MemberID == memberID {
		return nil
	}
	return ErrForbidden
}

// CanViewEvent reports whether actor sees an event belonging to memberID.
func CanViewEvent(actor AuthContext, memberID string) bool {
	return actor.Role == model.RoleParent || actor.MemberID == memberID
}
