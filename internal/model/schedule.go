package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is a recurring weekly commitment such as an academy class.
// DaysOfWeek uses two-letter day codes, e.g. "MO,WE,FR".
type Schedule struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	FamilyCode      string          `json:"family_code,omitempty"`
	Name            string          `json:"name"`
	Emoji           string          `json:"emoji"`
	Category        string          `json:"category"`
	DaysOfWeek      string          `json:"days_of_week"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Derived when served, not stored.
	Recurrence string `json:"recurrence,omitempty"`
	NextOn     string `json:"next_on,omitempty"`
}

type DayStatus string

const (
	DayCompleted DayStatus = "completed"
	DayAbsent    DayStatus = "absent"
)

// DailyScheduleStatus records the outcome of one schedule on one date.
type DailyScheduleStatus struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ScheduleID string    `json:"schedule_id"`
	Date       string    `json:"date"`
	Status     DayStatus `json:"status"`
	ActivityID string    `json:"activity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
