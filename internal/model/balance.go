package model

import "time"

type Balance struct {
	UserID         string    `json:"user_id"`
	CurrentBalance int       `json:"current_balance"`
	LastUpdated    time.Time `json:"last_updated"`
}
