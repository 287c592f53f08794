package model

import "time"

type Role string

const (
	RoleParent Role = "PARENT"
	RoleChild  Role = "CHILD"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type Member struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	AvatarColor string    `json:"avatar_color"`
	Password    string    `json:"password,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// IsParent reports whether the member holds the parent role.
func (m Member) IsParent() bool {
	return m.Role == RoleParent
}

// DefaultFamily is the member set written on first start when no seed file is configured.
func DefaultFamily() []Member {
	return []Member{
		{ID: "1", Name: "Dad", Age: 35, AvatarColor: "bg-blue-500", Role: RoleParent, Password: "123"},
		{ID: "2", Name: "Mom", Age: 32, AvatarColor: "bg-rose-500", Role: RoleParent, Password: "123"},
		{ID: "3", Name: "Uyen", Age: 10, AvatarColor: "bg-teal-500", Role: RoleChild, Password: "123"},
		{ID: "4", Name: "Trang", Age: 6, AvatarColor: "bg-amber-500", Role: RoleChild, Password: "123"},
	}
}
