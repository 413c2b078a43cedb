package ledger

import (
	"context"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/model"
)

// linkedTo reports whether actor is a parent linked to familyCode.
func linkedTo(actor auth.Actor, familyCode string) bool {
	return actor.IsParent() && actor.LinkedFamilyCode != "" && actor.LinkedFamilyCode == familyCode
}

// canView reports whether actor may read records owned by a student.
func canView(actor auth.Actor, ownerID, familyCode string) bool {
	return actor.UserID == ownerID || linkedTo(actor, familyCode)
}

// resolveStudent returns the student an actor is asking about. An empty
// userID means the actor themselves, or the linked student for a parent.
func (e *Engine) resolveStudent(ctx context.Context, actor auth.Actor, userID string) (*model.User, error) {
	if userID == "" {
		if actor.IsStudent() {
			userID = actor.UserID
		} else {
			if actor.LinkedFamilyCode == "" {
				return nil, forbidden("parent is not linked to a family")
			}
			return e.linkedStudent(ctx, actor)
		}
	}

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsStudent() {
		return nil, notFound("student")
	}
	if !canView(actor, u.ID, u.FamilyCode) {
		return nil, forbidden("student is outside your family")
	}
	return u, nil
}

func (e *Engine) linkedStudent(ctx context.Context, actor auth.Actor) (*model.User, error) {
	u, err := e.users.GetStudentByFamilyCode(ctx, actor.LinkedFamilyCode)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("linked student")
	}
	return u, nil
}
