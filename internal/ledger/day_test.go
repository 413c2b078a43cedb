package ledger

import (
	"testing"
	"time"

	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
)

func TestComputeDayState(t *testing.T) {
	mwf := recurrence.Of(time.Monday, time.Wednesday, time.Friday)
	today := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name string
		date time.Time
		st   *model.DailyScheduleStatus
		want DayState
	}{
		{"due today", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), nil, StatePending},
		{"due earlier", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), nil, StateMissed},
		{"due later", time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), nil, StateUpcoming},
		{"not a schedule day", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), nil, StateNotDue},
		{"completed", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), &model.DailyScheduleStatus{Status: model.DayCompleted}, StateCompleted},
		{"absent", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), &model.DailyScheduleStatus{Status: model.DayAbsent}, StateAbsent},
		{"status outlives day change", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), &model.DailyScheduleStatus{Status: model.DayCompleted}, StateCompleted},
	}

	for _, tt := range tests {
		got := ComputeDayState(mwf, tt.st, tt.date, today)
		if got != tt.want {
			t.Errorf("%s: state = %q, want %q", tt.name, got, tt.want)
		}
	}
}
