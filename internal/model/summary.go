package model

// DailySummary is the per-day view of a student's balance.
// PreviousBalance is the current balance minus the day's net change.
type DailySummary struct {
	Date            string     `json:"date"`
	PreviousBalance int        `json:"previous_balance"`
	EarnedMinutes   int        `json:"earned_minutes"`
	SpentMinutes    int        `json:"spent_minutes"`
	PenaltyMinutes  int        `json:"penalty_minutes"`
	CurrentBalance  int        `json:"current_balance"`
	Activities      []Activity `json:"activities"`
}

type CategoryTotal struct {
	Category string       `json:"category"`
	Type     ActivityType `json:"type"`
	Count    int          `json:"count"`
	Minutes  int          `json:"minutes"`
}

type Statistics struct {
	UserID     string          `json:"user_id"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Earned     int             `json:"earned"`
	Spent      int             `json:"spent"`
	Penalty    int             `json:"penalty"`
	Net        int             `json:"net"`
	ByCategory []CategoryTotal `json:"by_category"`
}
