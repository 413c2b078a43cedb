package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivityType string

const (
	TypeEarn    ActivityType = "earn"
	TypeSpend   ActivityType = "spend"
	TypeNeutral ActivityType = "neutral"
	TypePenalty ActivityType = "penalty"
)

type ActivityStatus string

const (
	StatusPending  ActivityStatus = "pending"
	StatusApproved ActivityStatus = "approved"
	StatusRejected ActivityStatus = "rejected"
)

// Activity is one recorded unit of earning, spending, neutral, or penalty time.
// EarnedMinutes is always a non-negative magnitude; the sign applied to the
// balance comes from Type.
type Activity struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	FamilyCode      string          `json:"family_code,omitempty"`
	Date            string          `json:"date"`
	Type            ActivityType    `json:"type"`
	Category        string          `json:"category"`
	Subject         string          `json:"subject,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	EarnedMinutes   int             `json:"earned_minutes"`
	NeedsApproval   bool            `json:"needs_approval"`
	Status          ActivityStatus  `json:"status"`
	Description     string          `json:"description,omitempty"`
	StartTime       string          `json:"start_time,omitempty"`
	EndTime         string          `json:"end_time,omitempty"`
	ScheduleID      string          `json:"schedule_id,omitempty"`
	RejectReason    string          `json:"reject_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
}

// ActivityFilter selects activities. Empty fields are not constrained.
// From and To are inclusive YYYY-MM-DD dates.
type ActivityFilter struct {
	UserID     string
	FamilyCode string
	Status     ActivityStatus
	Type       ActivityType
	From       string
	To         string
	Limit      int
}
