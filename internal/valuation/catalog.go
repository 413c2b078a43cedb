package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/timebank/internal/model"
)

// Category is the static configuration of one activity category.
type Category struct {
	Name            string             `json:"name"`
	Label           string             `json:"label"`
	Type            model.ActivityType `json:"type"`
	Multiplier      decimal.Decimal    `json:"multiplier"`
	FixedMinutes    int                `json:"fixed_minutes,omitempty"`
	NeedsApproval   bool               `json:"needs_approval"`
	RequiresSubject bool               `json:"requires_subject,omitempty"`
	HolidayOnly     bool               `json:"holiday_only,omitempty"`
}

// Fixed reports whether the category ignores the reported duration.
func (c Category) Fixed() bool {
	return c.FixedMinutes > 0
}

var (
	one        = decimal.NewFromInt(1)
	oneAndHalf = decimal.RequireFromString("1.5")
	two        = decimal.NewFromInt(2)
)

var categories = []Category{
	{Name: "holiday_bonus", Label: "Holiday bonus", Type: model.TypeEarn, Multiplier: one, FixedMinutes: 60, HolidayOnly: true},
	{Name: "academy", Label: "Academy / tutoring", Type: model.TypeEarn, Multiplier: one},
	{Name: "homework", Label: "Homework", Type: model.TypeEarn, Multiplier: one, RequiresSubject: true},
	{Name: "self_study", Label: "Self study", Type: model.TypeEarn, Multiplier: oneAndHalf, NeedsApproval: true, RequiresSubject: true},
	{Name: "reading", Label: "Reading + report", Type: model.TypeEarn, Multiplier: oneAndHalf, NeedsApproval: true},
	{Name: "good_deed", Label: "Good deed", Type: model.TypeEarn, Multiplier: oneAndHalf, NeedsApproval: true},
	{Name: "coding", Label: "Coding / AI", Type: model.TypeEarn, Multiplier: two, NeedsApproval: true},
	{Name: "app_complete", Label: "App completed", Type: model.TypeEarn, Multiplier: one, FixedMinutes: 6000, NeedsApproval: true},
	{Name: "app_store", Label: "App store release", Type: model.TypeEarn, Multiplier: one, FixedMinutes: 60000, NeedsApproval: true},

	{Name: "game", Label: "Game", Type: model.TypeSpend, Multiplier: one},
	{Name: "youtube", Label: "YouTube", Type: model.TypeSpend, Multiplier: one},
	{Name: "item_exchange", Label: "Item exchange", Type: model.TypeSpend, Multiplier: one, FixedMinutes: 600, NeedsApproval: true},

	{Name: "drawing", Label: "Drawing", Type: model.TypeNeutral, Multiplier: decimal.Zero},
	{Name: "game_creation", Label: "Making games in a game", Type: model.TypeNeutral, Multiplier: decimal.Zero},

	{Name: "no_record", Label: "Unrecorded usage", Type: model.TypePenalty, Multiplier: one, FixedMinutes: 60},
	{Name: "no_balance", Label: "Used without balance", Type: model.TypePenalty, Multiplier: one, FixedMinutes: 120},
	{Name: "lying", Label: "Lying", Type: model.TypePenalty, Multiplier: one, FixedMinutes: 600},
}

var byName = func() map[string]Category {
	m := make(map[string]Category, len(categories))
	for _, c := range categories {
		m[c.Name] = c
	}
	return m
}()

// Lookup returns the configuration for a category name.
func Lookup(name string) (Category, bool) {
	c, ok := byName[name]
	return c, ok
}

// All returns every category in display order.
func All() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ByType returns the categories of one activity type in display order.
func ByType(t model.ActivityType) []Category {
	var out []Category
	for _, c := range categories {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
