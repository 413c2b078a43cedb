package ledger

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/metrics"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
	"github.com/dukerupert/timebank/internal/valuation"
)

// ApproveActivity moves a pending activity to approved and applies it.
// Pending spends are checked against the balance again.
func (e *Engine) ApproveActivity(ctx context.Context, actor auth.Actor, id string) (*model.Activity, error) {
	var approved *model.Activity
	var balance int
	err := e.activityUnit(ctx, id, "approve", func(ctx context.Context, a *model.Activity) error {
		if !actor.IsParent() {
			return forbidden("only parents approve activities")
		}
		if !linkedTo(actor, a.FamilyCode) {
			return forbidden("activity is outside your family")
		}

		to, effect, err := Transition(a.Status, EventApprove)
		if err != nil {
			return err
		}
		if a.Type == model.TypeSpend {
			if err := e.checkSpend(ctx, a.UserID, a.EarnedMinutes); err != nil {
				return err
			}
		}

		now := e.now()
		a.Status = to
		a.ApprovedBy = actor.UserID
		a.ApprovedAt = &now
		a.UpdatedAt = now
		if err := e.activities.Update(ctx, a); err != nil {
			return err
		}

		delta := 0
		if effect == EffectApply {
			delta = valuation.Contribution(*a)
		}
		balance, err = e.applyDelta(ctx, a.UserID, "approve", delta)
		approved = a
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("activity approved", "activity_id", approved.ID, "user_id", approved.UserID, "by", actor.UserID)
	e.publish(ctx, ChangeEvent{
		Kind: KindActivityApproved, UserID: approved.UserID, FamilyCode: approved.FamilyCode,
		ActorID: actor.UserID, Activity: approved, Balance: balance,
	})
	return approved, nil
}

// RejectActivity moves a pending activity to rejected. Rejection is terminal.
func (e *Engine) RejectActivity(ctx context.Context, actor auth.Actor, id, reason string) (*model.Activity, error) {
	if utf8.RuneCountInString(reason) > maxDescriptionLen {
		return nil, newValidationError("reason", "too long (max 500)")
	}

	var rejected *model.Activity
	var balance int
	err := e.activityUnit(ctx, id, "reject", func(ctx context.Context, a *model.Activity) error {
		if !actor.IsParent() {
			return forbidden("only parents reject activities")
		}
		if !linkedTo(actor, a.FamilyCode) {
			return forbidden("activity is outside your family")
		}

		to, _, err := Transition(a.Status, EventReject)
		if err != nil {
			return err
		}

		now := e.now()
		a.Status = to
		a.RejectReason = e.sanitize(strings.TrimSpace(reason))
		a.ApprovedBy = actor.UserID
		a.ApprovedAt = &now
		a.UpdatedAt = now
		if err := e.activities.Update(ctx, a); err != nil {
			return err
		}
		balance, err = e.applyDelta(ctx, a.UserID, "reject", 0)
		rejected = a
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("activity rejected", "activity_id", rejected.ID, "user_id", rejected.UserID, "by", actor.UserID)
	e.publish(ctx, ChangeEvent{
		Kind: KindActivityRejected, UserID: rejected.UserID, FamilyCode: rejected.FamilyCode,
		ActorID: actor.UserID, Activity: rejected, Balance: balance,
	})
	return rejected, nil
}

// IssuePenalty deducts a fixed penalty from a linked student. Penalties are
// created approved and may take the balance below zero.
func (e *Engine) IssuePenalty(ctx context.Context, actor auth.Actor, in PenaltyInput) (*model.Activity, error) {
	if !actor.IsParent() {
		return nil, forbidden("only parents issue penalties")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cat, ok := valuation.Lookup(in.Category)
	if !ok || cat.Type != model.TypePenalty {
		return nil, newValidationError("category", "not a penalty category")
	}

	student, err := e.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if student == nil || !student.IsStudent() {
		return nil, notFound("student")
	}
	if !linkedTo(actor, student.FamilyCode) {
		return nil, forbidden("student is outside your family")
	}

	v, err := valuation.Valuate(cat.Name, 0)
	if err != nil {
		return nil, valuationError(err)
	}

	now := e.now()
	a := &model.Activity{
		UserID:          student.ID,
		FamilyCode:      student.FamilyCode,
		Date:            e.Today().Format(recurrence.DateLayout),
		Type:            model.TypePenalty,
		Category:        cat.Name,
		DurationMinutes: v.EarnedMinutes,
		Multiplier:      v.Multiplier,
		EarnedMinutes:   v.EarnedMinutes,
		NeedsApproval:   false,
		Status:          model.StatusApproved,
		Description:     e.sanitize(in.Description),
		CreatedAt:       now,
		UpdatedAt:       now,
		ApprovedBy:      actor.UserID,
		ApprovedAt:      &now,
	}

	var created *model.Activity
	var balance int
	err = e.unit(ctx, student.ID, "penalty", func(ctx context.Context) error {
		var err error
		created, err = e.activities.Create(ctx, a)
		if err != nil {
			return err
		}
		balance, err = e.applyDelta(ctx, student.ID, "penalty", valuation.Contribution(*created))
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ActivitiesRecorded.WithLabelValues(string(created.Type), string(created.Status)).Inc()
	e.log.Info("penalty issued", "activity_id", created.ID, "user_id", student.ID,
		"category", cat.Name, "minutes", created.EarnedMinutes, "by", actor.UserID)
	e.publish(ctx, ChangeEvent{
		Kind: KindPenaltyIssued, UserID: student.ID, FamilyCode: student.FamilyCode,
		ActorID: actor.UserID, Activity: created, Balance: balance,
	})
	return created, nil
}
