package auth

import (
	"context"

	"github.com/dukerupert/famsched/internal/model"
)

type contextKey struct{}

type holderKey struct{}

type AuthContext struct {
	MemberID string
	Name     string
	Role     model.Role
}

// Member returns the acting member as far as the session knows it.
func (ac AuthContext) Member() model.Member {
	return model.Member{ID: ac.MemberID, Name: ac.Name, Role: ac.Role}
}

// WithAuth stores ac on ctx and copies it into the holder placed by an outer
// WithHolder, if any.
func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	if h, ok := ctx.Value(holderKey{}).(*AuthContext); ok {
		*h = ac
	}
	return context.WithValue(ctx, contextKey{}, ac)
}

// WithHolder lets an outer handler observe the session established by inner
// middleware once the request completes.
func WithHolder(ctx context.Context, h *AuthContext) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func MemberID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.MemberID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent
}
