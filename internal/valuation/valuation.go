// Package valuation converts raw activity input into minutes.
//
// It performs no I/O. Every balance sign in the system comes from
// SignedContribution.
package valuation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/timebank/internal/model"
)

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidMultiplier = errors.New("multiplier must not be negative")
)

// Valuation is the accounting outcome of one activity.
type Valuation struct {
	Category      string
	Type          model.ActivityType
	Multiplier    decimal.Decimal
	EarnedMinutes int
	NeedsApproval bool
	FixedDuration bool
}

// Neutral reports whether the activity is history only and never touches a balance.
func (v Valuation) Neutral() bool {
	return v.Type == model.TypeNeutral || v.Multiplier.IsZero()
}

// Valuate applies the category's configured multiplier.
func Valuate(category string, durationMinutes int) (Valuation, error) {
	c, ok := Lookup(category)
	if !ok {
		return Valuation{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return valuate(c, durationMinutes, c.Multiplier)
}

// ValuateWith values an activity with an explicit multiplier, such as one
// stored on a schedule or an existing record.
func ValuateWith(category string, durationMinutes int, multiplier decimal.Decimal) (Valuation, error) {
	c, ok := Lookup(category)
	if !ok {
		return Valuation{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return valuate(c, durationMinutes, multiplier)
}

func valuate(c Category, duration int, multiplier decimal.Decimal) (Valuation, error) {
	v := Valuation{
		Category:      c.Name,
		Type:          c.Type,
		Multiplier:    multiplier,
		NeedsApproval: c.NeedsApproval,
		FixedDuration: c.Fixed(),
	}

	if c.Fixed() {
		v.EarnedMinutes = c.FixedMinutes
		return v, nil
	}
	if duration <= 0 {
		return Valuation{}, ErrInvalidDuration
	}
	if multiplier.IsNegative() {
		return Valuation{}, ErrInvalidMultiplier
	}
	if c.Type == model.TypeNeutral {
		v.Multiplier = decimal.Zero
		return v, nil
	}

	v.EarnedMinutes = Minutes(duration, multiplier)
	return v, nil
}

// Minutes returns duration * multiplier rounded half-up to a whole minute.
func Minutes(duration int, multiplier decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(duration)).Mul(multiplier).Round(0).IntPart())
}

// SignedContribution is the amount an approved activity adds to a balance.
func SignedContribution(t model.ActivityType, earnedMinutes int) int {
	switch t {
	case model.TypeEarn:
		return earnedMinutes
	case model.TypeSpend, model.TypePenalty:
		return -earnedMinutes
	default:
		return 0
	}
}

// Contribution is SignedContribution for a stored activity. Pending and
// rejected activities contribute nothing.
func Contribution(a model.Activity) int {
	if a.Status != model.StatusApproved {
		return 0
	}
	return SignedContribution(a.Type, a.EarnedMinutes)
}
