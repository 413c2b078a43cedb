package ledger

import (
	"time"

	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
)

// DayState is the computed state of one schedule on one date.
type DayState string

const (
	StatePending   DayState = "pending"
	StateCompleted DayState = "completed"
	StateAbsent    DayState = "absent"
	StateMissed    DayState = "missed"
	StateUpcoming  DayState = "upcoming"
	StateNotDue    DayState = "not_due"
)

// ScheduleDay is a schedule together with its state on a date.
type ScheduleDay struct {
	Schedule   model.Schedule `json:"schedule"`
	Date       string         `json:"date"`
	State      DayState       `json:"state"`
	ActivityID string         `json:"activity_id,omitempty"`
}

// ComputeDayState combines the weekly set, any recorded status, and today.
// A recorded status wins even if the schedule's days changed afterwards.
func ComputeDayState(days recurrence.Weekdays, st *model.DailyScheduleStatus, date, today time.Time) DayState {
	if st != nil {
		if st.Status == model.DayAbsent {
			return StateAbsent
		}
		return StateCompleted
	}

	if !days.Occurs(date) {
		return StateNotDue
	}

	date = recurrence.StartOfDay(date)
	today = recurrence.StartOfDay(today)
	switch {
	case date.After(today):
		return StateUpcoming
	case date.Before(today):
		return StateMissed
	}
	return StatePending
}
