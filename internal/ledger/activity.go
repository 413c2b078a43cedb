package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/metrics"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
	"github.com/dukerupert/timebank/internal/valuation"
)

// RecordActivity stores a student's own activity. Activities that need no
// approval apply to the balance immediately; spends are refused when they
// exceed the current balance.
func (e *Engine) RecordActivity(ctx context.Context, actor auth.Actor, in RecordInput) (*model.Activity, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students record activities")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cat, ok := valuation.Lookup(in.Category)
	if !ok {
		return nil, newValidationError("category", "unknown category")
	}
	if cat.Type == model.TypePenalty {
		return nil, forbidden("penalties are issued by parents")
	}

	date, err := e.parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	if err := e.checkRecordDate(date); err != nil {
		return nil, err
	}
	if cat.HolidayOnly {
		if ok, _ := valuation.IsHoliday(date); !ok {
			return nil, newValidationError("date", "only available on weekends and public holidays")
		}
	}
	if cat.RequiresSubject {
		if err := e.checkSubject(ctx, actor.UserID, in.Subject); err != nil {
			return nil, err
		}
	}

	v, err := valuation.Valuate(in.Category, in.DurationMinutes)
	if err != nil {
		return nil, valuationError(err)
	}

	status, effect := Initial(v.NeedsApproval)
	now := e.now()
	a := &model.Activity{
		UserID:          actor.UserID,
		FamilyCode:      actor.FamilyCode,
		Date:            date.Format(recurrence.DateLayout),
		Type:            v.Type,
		Category:        v.Category,
		Subject:         strings.TrimSpace(in.Subject),
		DurationMinutes: in.DurationMinutes,
		Multiplier:      v.Multiplier,
		EarnedMinutes:   v.EarnedMinutes,
		NeedsApproval:   v.NeedsApproval,
		Status:          status,
		Description:     e.sanitize(in.Description),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if v.FixedDuration {
		a.DurationMinutes = v.EarnedMinutes
	}
	if status == model.StatusApproved {
		a.ApprovedAt = &now
	}

	var created *model.Activity
	var balance int
	err = e.unit(ctx, actor.UserID, "record", func(ctx context.Context) error {
		if a.Type == model.TypeSpend {
			if err := e.checkSpend(ctx, a.UserID, a.EarnedMinutes); err != nil {
				return err
			}
		}

		var err error
		created, err = e.activities.Create(ctx, a)
		if err != nil {
			return err
		}
		delta := 0
		if effect == EffectApply {
			delta = valuation.Contribution(*created)
		}
		balance, err = e.applyDelta(ctx, created.UserID, "record", delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ActivitiesRecorded.WithLabelValues(string(created.Type), string(created.Status)).Inc()
	e.log.Info("activity recorded", "activity_id", created.ID, "user_id", created.UserID,
		"category", created.Category, "earned", created.EarnedMinutes, "status", created.Status)
	e.publish(ctx, ChangeEvent{
		Kind: KindActivityCreated, UserID: created.UserID, FamilyCode: created.FamilyCode,
		ActorID: actor.UserID, Activity: created, Balance: balance,
	})
	return created, nil
}

// EditActivity changes an activity. Linked parents may edit pending and
// approved activities; students may edit their own while pending. The
// earned minutes are recomputed with the multiplier stored on the record,
// and an approved activity's balance moves by the difference.
func (e *Engine) EditActivity(ctx context.Context, actor auth.Actor, id string, in EditInput) (*model.Activity, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *model.Activity
	var balance int
	err := e.activityUnit(ctx, id, "edit", func(ctx context.Context, a *model.Activity) error {
		owner := actor.UserID == a.UserID
		switch {
		case linkedTo(actor, a.FamilyCode):
		case owner && a.Status != model.StatusApproved:
			// rejected records fail the transition below
		case owner:
			return forbidden("approved activities can only be edited by a parent")
		default:
			return forbidden("activity is outside your family")
		}

		_, effect, err := Transition(a.Status, EventEdit)
		if err != nil {
			return err
		}

		old := valuation.Contribution(*a)
		if err := e.applyEdit(ctx, a, in, actor); err != nil {
			return err
		}
		a.UpdatedAt = e.now()
		if err := e.activities.Update(ctx, a); err != nil {
			return err
		}

		delta := 0
		if effect == EffectAdjust {
			delta = valuation.Contribution(*a) - old
		}
		balance, err = e.applyDelta(ctx, a.UserID, "edit", delta)
		updated = a
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("activity edited", "activity_id", updated.ID, "user_id", updated.UserID, "earned", updated.EarnedMinutes)
	e.publish(ctx, ChangeEvent{
		Kind: KindActivityUpdated, UserID: updated.UserID, FamilyCode: updated.FamilyCode,
		ActorID: actor.UserID, Activity: updated, Balance: balance,
	})
	return updated, nil
}

func (e *Engine) applyEdit(ctx context.Context, a *model.Activity, in EditInput, actor auth.Actor) error {
	cat, _ := valuation.Lookup(a.Category)

	if in.Date != nil && *in.Date != a.Date {
		if a.ScheduleID != "" {
			return newValidationError("date", "scheduled activities keep their day; reset the day instead")
		}
		d, err := e.parseDate("date", *in.Date)
		if err != nil {
			return err
		}
		if d.After(e.Today()) {
			return newValidationError("date", "must not be in the future")
		}
		if actor.UserID == a.UserID {
			if err := e.checkRecordDate(d); err != nil {
				return err
			}
		}
		if cat.HolidayOnly {
			if ok, _ := valuation.IsHoliday(d); !ok {
				return newValidationError("date", "only available on weekends and public holidays")
			}
		}
		a.Date = d.Format(recurrence.DateLayout)
	}
	if in.Subject != nil {
		subject := strings.TrimSpace(*in.Subject)
		if cat.RequiresSubject {
			if err := e.checkSubject(ctx, a.UserID, subject); err != nil {
				return err
			}
		}
		a.Subject = subject
	}
	if in.Description != nil {
		a.Description = e.sanitize(*in.Description)
	}
	if in.StartTime != nil {
		a.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		a.EndTime = *in.EndTime
	}
	if in.DurationMinutes != nil && !cat.Fixed() {
		a.DurationMinutes = *in.DurationMinutes
		a.EarnedMinutes = valuation.Minutes(a.DurationMinutes, a.Multiplier)
	}
	return nil
}

// DeleteActivity removes an activity, reversing its contribution when it
// was approved. A materialized schedule day is reopened.
func (e *Engine) DeleteActivity(ctx context.Context, actor auth.Actor, id string) error {
	var gone *model.Activity
	var balance int
	err := e.activityUnit(ctx, id, "delete", func(ctx context.Context, a *model.Activity) error {
		owner := actor.UserID == a.UserID
		if !owner && !linkedTo(actor, a.FamilyCode) {
			return forbidden("activity is outside your family")
		}
		if owner && a.Type == model.TypePenalty {
			return forbidden("penalties can only be removed by a parent")
		}

		_, effect, err := Transition(a.Status, EventDelete)
		if err != nil {
			return err
		}
		if err := e.activities.Delete(ctx, a.ID); err != nil {
			return err
		}
		if a.ScheduleID != "" {
			if err := e.releaseScheduleDay(ctx, a); err != nil {
				return err
			}
		}

		delta := 0
		if effect == EffectReverse {
			delta = -valuation.Contribution(*a)
		}
		balance, err = e.applyDelta(ctx, a.UserID, "delete", delta)
		gone = a
		return err
	})
	if err != nil {
		return err
	}

	e.log.Info("activity deleted", "activity_id", gone.ID, "user_id", gone.UserID)
	e.publish(ctx, ChangeEvent{
		Kind: KindActivityDeleted, UserID: gone.UserID, FamilyCode: gone.FamilyCode,
		ActorID: actor.UserID, Activity: gone, Balance: balance,
	})
	return nil
}

// releaseScheduleDay drops the completed status that points at a.
func (e *Engine) releaseScheduleDay(ctx context.Context, a *model.Activity) error {
	released, err := e.statuses.DeleteByActivity(ctx, a.ID)
	if err != nil {
		return err
	}
	if !released {
		e.log.Warn("no schedule day held the activity", "activity_id", a.ID, "schedule_id", a.ScheduleID)
	}
	return nil
}

// GetActivity returns one activity visible to actor.
func (e *Engine) GetActivity(ctx context.Context, actor auth.Actor, id string) (*model.Activity, error) {
	a, err := e.activities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, notFound("activity")
	}
	if !canView(actor, a.UserID, a.FamilyCode) {
		return nil, forbidden("activity is outside your family")
	}
	return a, nil
}

// ListActivities returns activities newest first. Students see their own;
// parents see their linked family's.
func (e *Engine) ListActivities(ctx context.Context, actor auth.Actor, f model.ActivityFilter) ([]model.Activity, error) {
	if actor.IsStudent() {
		if f.UserID != "" && f.UserID != actor.UserID {
			return nil, forbidden("students can only list their own activities")
		}
		f.UserID = actor.UserID
		f.FamilyCode = ""
	} else {
		if actor.LinkedFamilyCode == "" {
			return nil, forbidden("parent is not linked to a family")
		}
		f.FamilyCode = actor.LinkedFamilyCode
	}
	return e.activities.Query(ctx, f)
}

// PendingActivities lists the linked family's activities awaiting review.
func (e *Engine) PendingActivities(ctx context.Context, actor auth.Actor) ([]model.Activity, error) {
	if !actor.IsParent() {
		return nil, forbidden("only parents review activities")
	}
	return e.ListActivities(ctx, actor, model.ActivityFilter{Status: model.StatusPending})
}

// activityUnit loads an activity and runs fn on a fresh copy inside the
// owner's unit.
func (e *Engine) activityUnit(ctx context.Context, id, op string, fn func(ctx context.Context, a *model.Activity) error) error {
	a, err := e.activities.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return notFound("activity")
	}

	return e.unit(ctx, a.UserID, op, func(ctx context.Context) error {
		cur, err := e.activities.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return notFound("activity")
		}
		return fn(ctx, cur)
	})
}

func (e *Engine) checkSpend(ctx context.Context, userID string, minutes int) error {
	b, err := e.balances.Get(ctx, userID)
	if err != nil {
		return err
	}
	if minutes > b.CurrentBalance {
		return &InsufficientBalanceError{Balance: b.CurrentBalance, Requested: minutes}
	}
	return nil
}

func (e *Engine) parseDate(field, s string) (time.Time, error) {
	d, err := recurrence.ParseDate(s, e.loc)
	if err != nil {
		return time.Time{}, newValidationError(field, "must be YYYY-MM-DD")
	}
	return d, nil
}

// checkRecordDate allows today and up to BackdateDays before it.
func (e *Engine) checkRecordDate(d time.Time) error {
	today := e.Today()
	if d.After(today) {
		return newValidationError("date", "must not be in the future")
	}
	if d.Before(today.AddDate(0, 0, -e.cfg.BackdateDays)) {
		return newValidationError("date", fmt.Sprintf("must be within %d day(s) of today", e.cfg.BackdateDays))
	}
	return nil
}

func (e *Engine) checkSubject(ctx context.Context, userID, subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return newValidationError("subject", "required for this category")
	}
	for _, s := range model.DefaultSubjects {
		if s.ID == subject {
			return nil
		}
	}
	custom, err := e.subjects.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list subjects: %w", err)
	}
	for _, s := range custom {
		if s.ID == subject || s.Name == subject {
			return nil
		}
	}
	return newValidationError("subject", "unknown subject")
}

func valuationError(err error) error {
	switch {
	case errors.Is(err, valuation.ErrInvalidDuration):
		return newValidationError("duration_minutes", "must be positive")
	case errors.Is(err, valuation.ErrUnknownCategory):
		return newValidationError("category", "unknown category")
	case errors.Is(err, valuation.ErrInvalidMultiplier):
		return newValidationError("multiplier", "must not be negative")
	}
	return err
}
