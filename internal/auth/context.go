package auth

import (
	"context"

	"github.com/dukerupert/timebank/internal/model"
)

type contextKey struct{}

// Actor is the authenticated user performing an operation.
// Students own FamilyCode; parents act on LinkedFamilyCode.
type Actor struct {
	UserID           string
	Role             string
	FamilyCode       string
	LinkedFamilyCode string
}

// ActorFor builds an Actor from a stored user.
func ActorFor(u *model.User) Actor {
	return Actor{
		UserID:           u.ID,
		Role:             u.Role,
		FamilyCode:       u.FamilyCode,
		LinkedFamilyCode: u.LinkedFamilyCode,
	}
}

func (a Actor) IsParent() bool {
	return a.Role == model.RoleParent
}

func (a Actor) IsStudent() bool {
	return a.Role == model.RoleStudent
}

// Family returns the family code the actor belongs to, or "" if unlinked.
func (a Actor) Family() string {
	if a.IsParent() {
		return a.LinkedFamilyCode
	}
	return a.FamilyCode
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func UserID(ctx context.Context) string {
	a, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return a.UserID
}

func IsParent(ctx context.Context) bool {
	a, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return a.IsParent()
}
