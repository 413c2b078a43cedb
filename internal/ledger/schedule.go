package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
	"github.com/dukerupert/timebank/internal/store"
	"github.com/dukerupert/timebank/internal/valuation"
)

// maxCalendarDays bounds a ScheduleCalendar range.
const maxCalendarDays = 92

// ScheduleInput creates or replaces a weekly schedule. A zero duration is
// derived from StartTime and EndTime; a nil multiplier takes the category's.
type ScheduleInput struct {
	Name            string
	Emoji           string
	Category        string
	DaysOfWeek      string
	StartTime       string
	EndTime         string
	DurationMinutes int
	Multiplier      *decimal.Decimal
	IsActive        *bool
}

func (i *ScheduleInput) Validate() error {
	var errs []FieldError

	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	} else if utf8.RuneCountInString(name) > maxNameLen {
		errs = append(errs, FieldError{Field: "name", Message: "too long (max 50)"})
	}

	if cat, ok := valuation.Lookup(i.Category); !ok {
		errs = append(errs, FieldError{Field: "category", Message: "unknown category"})
	} else if cat.Type != model.TypeEarn || cat.Fixed() {
		errs = append(errs, FieldError{Field: "category", Message: "schedules must use a timed earn category"})
	}

	if _, err := recurrence.Parse(i.DaysOfWeek); err != nil {
		errs = append(errs, FieldError{Field: "days_of_week", Message: err.Error()})
	}

	errs = append(errs, validateClock("start_time", i.StartTime)...)
	errs = append(errs, validateClock("end_time", i.EndTime)...)

	if i.DurationMinutes < 0 {
		errs = append(errs, FieldError{Field: "duration_minutes", Message: "must be positive"})
	} else if i.DurationMinutes > maxDurationMinutes {
		errs = append(errs, FieldError{Field: "duration_minutes", Message: "must be at most 1440"})
	} else if i.DurationMinutes == 0 && clockSpan(i.StartTime, i.EndTime) <= 0 {
		errs = append(errs, FieldError{Field: "duration_minutes", Message: "required unless end_time is after start_time"})
	}

	if i.Multiplier != nil && !i.Multiplier.IsPositive() {
		errs = append(errs, FieldError{Field: "multiplier", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// apply copies validated input onto sc.
func (i *ScheduleInput) apply(sc *model.Schedule, sanitize func(string) string) {
	days, _ := recurrence.Parse(i.DaysOfWeek)
	cat, _ := valuation.Lookup(i.Category)

	sc.Name = sanitize(strings.TrimSpace(i.Name))
	sc.Emoji = i.Emoji
	sc.Category = cat.Name
	sc.DaysOfWeek = days.String()
	sc.StartTime = i.StartTime
	sc.EndTime = i.EndTime
	sc.DurationMinutes = i.DurationMinutes
	if sc.DurationMinutes == 0 {
		sc.DurationMinutes = clockSpan(i.StartTime, i.EndTime)
	}
	sc.Multiplier = cat.Multiplier
	if i.Multiplier != nil {
		sc.Multiplier = *i.Multiplier
	}
	sc.IsActive = true
	if i.IsActive != nil {
		sc.IsActive = *i.IsActive
	}
}

// clockSpan returns end minus start in minutes, or 0 when either is unset.
func clockSpan(start, end string) int {
	s, err1 := time.Parse("15:04", start)
	e, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(e.Sub(s).Minutes())
}

// CreateSchedule adds a weekly schedule for the acting student.
func (e *Engine) CreateSchedule(ctx context.Context, actor auth.Actor, in ScheduleInput) (*model.Schedule, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students own schedules")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	sc := &model.Schedule{
		UserID:     actor.UserID,
		FamilyCode: actor.FamilyCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	in.apply(sc, e.sanitize)

	created, err := e.schedules.Create(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	e.annotate(created)
	e.log.Info("schedule created", "schedule_id", created.ID, "user_id", created.UserID, "days", created.DaysOfWeek)
	e.publish(ctx, ChangeEvent{Kind: KindScheduleCreated, UserID: created.UserID, FamilyCode: created.FamilyCode, ActorID: actor.UserID, ScheduleID: created.ID})
	return created, nil
}

// UpdateSchedule replaces a schedule's fields. Past materialized activities
// keep the values they were created with.
func (e *Engine) UpdateSchedule(ctx context.Context, actor auth.Actor, id string, in ScheduleInput) (*model.Schedule, error) {
	sc, err := e.visibleSchedule(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in.apply(sc, e.sanitize)
	sc.UpdatedAt = e.now()
	updated, err := e.schedules.Update(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	e.annotate(updated)
	e.publish(ctx, ChangeEvent{Kind: KindScheduleUpdated, UserID: updated.UserID, FamilyCode: updated.FamilyCode, ActorID: actor.UserID, ScheduleID: updated.ID})
	return updated, nil
}

// DeleteSchedule removes a schedule and its day statuses. Activities it
// produced stay on the ledger.
func (e *Engine) DeleteSchedule(ctx context.Context, actor auth.Actor, id string) error {
	sc, err := e.visibleSchedule(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := e.schedules.Delete(ctx, sc.ID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	e.log.Info("schedule deleted", "schedule_id", sc.ID, "user_id", sc.UserID)
	e.publish(ctx, ChangeEvent{Kind: KindScheduleDeleted, UserID: sc.UserID, FamilyCode: sc.FamilyCode, ActorID: actor.UserID, ScheduleID: sc.ID})
	return nil
}

// ListSchedules returns a student's schedules.
func (e *Engine) ListSchedules(ctx context.Context, actor auth.Actor, userID string) ([]model.Schedule, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	list, err := e.schedules.ListByUser(ctx, u.ID, false)
	if err != nil {
		return nil, err
	}
	for i := range list {
		e.annotate(&list[i])
	}
	return list, nil
}

// annotate fills the derived recurrence text and, for active schedules,
// the next due date from today.
func (e *Engine) annotate(sc *model.Schedule) {
	days, err := recurrence.Parse(sc.DaysOfWeek)
	if err != nil {
		return
	}
	sc.Recurrence = days.Describe()
	sc.NextOn = ""
	if !sc.IsActive {
		return
	}
	if next, ok := days.Next(e.Today()); ok {
		sc.NextOn = next.Format(recurrence.DateLayout)
	}
}

// MaterializeSchedule records the schedule's activity for date and marks
// the day completed. The activity is approved and applied immediately.
// A day that already has a status is a conflict.
func (e *Engine) MaterializeSchedule(ctx context.Context, actor auth.Actor, scheduleID, date string) (*model.Activity, error) {
	var created *model.Activity
	var balance int
	err := e.scheduleUnit(ctx, actor, scheduleID, date, "materialize", func(ctx context.Context, sc *model.Schedule, day time.Time) error {
		if !sc.IsActive {
			return conflict("schedule is inactive")
		}
		if err := e.checkOpenDay(ctx, sc.ID, date); err != nil {
			return err
		}

		v, err := valuation.ValuateWith(sc.Category, sc.DurationMinutes, sc.Multiplier)
		if err != nil {
			return valuationError(err)
		}
		if v.Type != model.TypeEarn || v.Neutral() {
			return newValidationError("category", "schedule category does not earn time")
		}

		now := e.now()
		created, err = e.activities.Create(ctx, &model.Activity{
			UserID:          sc.UserID,
			FamilyCode:      sc.FamilyCode,
			Date:            day.Format(recurrence.DateLayout),
			Type:            model.TypeEarn,
			Category:        sc.Category,
			DurationMinutes: sc.DurationMinutes,
			Multiplier:      v.Multiplier,
			EarnedMinutes:   v.EarnedMinutes,
			NeedsApproval:   false,
			Status:          model.StatusApproved,
			Description:     sc.Name,
			StartTime:       sc.StartTime,
			EndTime:         sc.EndTime,
			ScheduleID:      sc.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
			ApprovedAt:      &now,
		})
		if err != nil {
			return err
		}

		if err := e.setDayStatus(ctx, sc, date, model.DayCompleted, created.ID); err != nil {
			return err
		}
		balance, err = e.applyDelta(ctx, sc.UserID, "materialize", valuation.Contribution(*created))
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("schedule materialized", "schedule_id", scheduleID, "date", date, "activity_id", created.ID, "earned", created.EarnedMinutes)
	e.publish(ctx, ChangeEvent{
		Kind: KindScheduleCompleted, UserID: created.UserID, FamilyCode: created.FamilyCode,
		ActorID: actor.UserID, Activity: created, ScheduleID: scheduleID, Date: date, Balance: balance,
	})
	return created, nil
}

// MarkAbsent records that the schedule did not happen on date. It has no
// balance effect and blocks materialization until reset.
func (e *Engine) MarkAbsent(ctx context.Context, actor auth.Actor, scheduleID, date string) error {
	var owner *model.Schedule
	err := e.scheduleUnit(ctx, actor, scheduleID, date, "absent", func(ctx context.Context, sc *model.Schedule, _ time.Time) error {
		if err := e.checkOpenDay(ctx, sc.ID, date); err != nil {
			return err
		}
		owner = sc
		return e.setDayStatus(ctx, sc, date, model.DayAbsent, "")
	})
	if err != nil {
		return err
	}

	e.publish(ctx, ChangeEvent{Kind: KindScheduleAbsent, UserID: owner.UserID, FamilyCode: owner.FamilyCode, ActorID: actor.UserID, ScheduleID: scheduleID, Date: date})
	return nil
}

// ResetScheduleStatus clears a day's status. Resetting a completed day
// also deletes the materialized activity and reverses its contribution.
func (e *Engine) ResetScheduleStatus(ctx context.Context, actor auth.Actor, scheduleID, date string) error {
	var owner *model.Schedule
	var balance int
	err := e.scheduleUnit(ctx, actor, scheduleID, date, "reset", func(ctx context.Context, sc *model.Schedule, _ time.Time) error {
		st, err := e.statuses.Get(ctx, sc.ID, date)
		if err != nil {
			return err
		}
		if st == nil {
			return notFound("schedule status")
		}
		if err := e.statuses.Delete(ctx, sc.ID, date); err != nil {
			return err
		}

		delta := 0
		if st.Status == model.DayCompleted && st.ActivityID != "" {
			a, err := e.activities.GetByID(ctx, st.ActivityID)
			if err != nil {
				return err
			}
			if a != nil {
				_, effect, err := Transition(a.Status, EventDelete)
				if err != nil {
					return err
				}
				if err := e.activities.Delete(ctx, a.ID); err != nil {
					return err
				}
				if effect == EffectReverse {
					delta = -valuation.Contribution(*a)
				}
			}
		}
		owner = sc
		balance, err = e.applyDelta(ctx, sc.UserID, "reset", delta)
		return err
	})
	if err != nil {
		return err
	}

	e.log.Info("schedule day reset", "schedule_id", scheduleID, "date", date)
	e.publish(ctx, ChangeEvent{
		Kind: KindScheduleReset, UserID: owner.UserID, FamilyCode: owner.FamilyCode,
		ActorID: actor.UserID, ScheduleID: scheduleID, Date: date, Balance: balance,
	})
	return nil
}

// ScheduleDay lists a student's schedules that are due, or have a status,
// on date.
func (e *Engine) ScheduleDay(ctx context.Context, actor auth.Actor, userID, date string) ([]ScheduleDay, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	day, err := e.parseDate("date", date)
	if err != nil {
		return nil, err
	}

	schedules, err := e.schedules.ListByUser(ctx, u.ID, false)
	if err != nil {
		return nil, err
	}
	statuses, err := e.statuses.ListByUserRange(ctx, u.ID, date, date)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.DailyScheduleStatus, len(statuses))
	for i := range statuses {
		byID[statuses[i].ScheduleID] = &statuses[i]
	}

	today := e.Today()
	out := []ScheduleDay{}
	for _, sc := range schedules {
		st := byID[sc.ID]
		if !sc.IsActive && st == nil {
			continue
		}
		days, err := recurrence.Parse(sc.DaysOfWeek)
		if err != nil {
			e.log.Error("invalid schedule days", "schedule_id", sc.ID, "days", sc.DaysOfWeek, "error", err)
			continue
		}
		state := ComputeDayState(days, st, day, today)
		if state == StateNotDue {
			continue
		}
		e.annotate(&sc)
		sd := ScheduleDay{Schedule: sc, Date: date, State: state}
		if st != nil {
			sd.ActivityID = st.ActivityID
		}
		out = append(out, sd)
	}
	return out, nil
}

// ScheduleCalendar lists every scheduled day of a student between two
// inclusive dates, oldest first. Days recorded before the schedule's
// weekdays changed are kept.
func (e *Engine) ScheduleCalendar(ctx context.Context, actor auth.Actor, userID, from, to string) ([]ScheduleDay, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	start, err := e.parseDate("from", from)
	if err != nil {
		return nil, err
	}
	end, err := e.parseDate("to", to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, newValidationError("to", "must not be before from")
	}
	if end.After(start.AddDate(0, 0, maxCalendarDays)) {
		return nil, newValidationError("to", fmt.Sprintf("range is limited to %d days", maxCalendarDays))
	}

	schedules, err := e.schedules.ListByUser(ctx, u.ID, false)
	if err != nil {
		return nil, err
	}
	statuses, err := e.statuses.ListByUserRange(ctx, u.ID, from, to)
	if err != nil {
		return nil, err
	}
	type dayKey struct{ scheduleID, date string }
	recorded := make(map[dayKey]*model.DailyScheduleStatus, len(statuses))
	for i := range statuses {
		recorded[dayKey{statuses[i].ScheduleID, statuses[i].Date}] = &statuses[i]
	}

	today := e.Today()
	out := []ScheduleDay{}
	for _, sc := range schedules {
		days, err := recurrence.Parse(sc.DaysOfWeek)
		if err != nil {
			e.log.Error("invalid schedule days", "schedule_id", sc.ID, "days", sc.DaysOfWeek, "error", err)
			continue
		}
		e.annotate(&sc)

		seen := make(map[string]bool)
		for _, d := range days.Expand(start, end) {
			date := d.Format(recurrence.DateLayout)
			seen[date] = true
			st := recorded[dayKey{sc.ID, date}]
			if !sc.IsActive && st == nil {
				continue
			}
			out = append(out, scheduleDay(sc, date, ComputeDayState(days, st, d, today), st))
		}
		for _, st := range statuses {
			if st.ScheduleID != sc.ID || seen[st.Date] {
				continue
			}
			d, err := e.parseDate("date", st.Date)
			if err != nil {
				continue
			}
			out = append(out, scheduleDay(sc, st.Date, ComputeDayState(days, &st, d, today), &st))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Schedule.StartTime < out[j].Schedule.StartTime
	})
	return out, nil
}

func scheduleDay(sc model.Schedule, date string, state DayState, st *model.DailyScheduleStatus) ScheduleDay {
	sd := ScheduleDay{Schedule: sc, Date: date, State: state}
	if st != nil {
		sd.ActivityID = st.ActivityID
	}
	return sd
}

// Unmarked returns, per user, the active schedules due on date that have
// no status yet.
func (e *Engine) Unmarked(ctx context.Context, date string) (map[string][]model.Schedule, error) {
	day, err := e.parseDate("date", date)
	if err != nil {
		return nil, err
	}
	schedules, err := e.schedules.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]model.Schedule)
	for _, sc := range schedules {
		days, err := recurrence.Parse(sc.DaysOfWeek)
		if err != nil || !days.Occurs(day) {
			continue
		}
		st, err := e.statuses.Get(ctx, sc.ID, date)
		if err != nil {
			return nil, err
		}
		if st == nil {
			out[sc.UserID] = append(out[sc.UserID], sc)
		}
	}
	return out, nil
}

// scheduleUnit checks access and the calendar date, then runs fn inside the
// owner's unit with a freshly loaded schedule.
func (e *Engine) scheduleUnit(ctx context.Context, actor auth.Actor, scheduleID, date, op string,
	fn func(ctx context.Context, sc *model.Schedule, day time.Time) error) error {
	sc, err := e.visibleSchedule(ctx, actor, scheduleID)
	if err != nil {
		return err
	}
	day, err := e.parseDate("date", date)
	if err != nil {
		return err
	}
	if day.After(e.Today()) {
		return newValidationError("date", "must not be in the future")
	}

	return e.unit(ctx, sc.UserID, op, func(ctx context.Context) error {
		cur, err := e.schedules.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if cur == nil {
			return notFound("schedule")
		}
		days, err := recurrence.Parse(cur.DaysOfWeek)
		if err != nil {
			return fmt.Errorf("schedule %s days: %w", cur.ID, err)
		}
		if op != "reset" && !days.Occurs(day) {
			return newValidationError("date", "schedule does not run on "+day.Weekday().String())
		}
		return fn(ctx, cur, day)
	})
}

func (e *Engine) visibleSchedule(ctx context.Context, actor auth.Actor, id string) (*model.Schedule, error) {
	sc, err := e.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sc == nil {
		return nil, notFound("schedule")
	}
	if !canView(actor, sc.UserID, sc.FamilyCode) {
		return nil, forbidden("schedule is outside your family")
	}
	return sc, nil
}

func (e *Engine) checkOpenDay(ctx context.Context, scheduleID, date string) error {
	st, err := e.statuses.Get(ctx, scheduleID, date)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	if st.Status == model.DayAbsent {
		return conflict("day is marked absent; reset it first")
	}
	return conflict("day is already completed")
}

func (e *Engine) setDayStatus(ctx context.Context, sc *model.Schedule, date string, status model.DayStatus, activityID string) error {
	err := e.statuses.Set(ctx, &model.DailyScheduleStatus{
		UserID:     sc.UserID,
		ScheduleID: sc.ID,
		Date:       date,
		Status:     status,
		ActivityID: activityID,
		CreatedAt:  e.now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return conflict("day already has a status")
	}
	return err
}
