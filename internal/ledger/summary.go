package ledger

import (
	"context"
	"sort"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/model"
)

// Balance returns a student's stored balance.
func (e *Engine) Balance(ctx context.Context, actor auth.Actor, userID string) (*model.Balance, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	return e.balances.Get(ctx, u.ID)
}

// DailySummary totals one day. PreviousBalance is the current balance
// minus the day's net change.
func (e *Engine) DailySummary(ctx context.Context, actor auth.Actor, userID, date string) (*model.DailySummary, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = e.Today().Format("2006-01-02")
	}
	if _, err := e.parseDate("date", date); err != nil {
		return nil, err
	}

	activities, err := e.activities.Query(ctx, model.ActivityFilter{UserID: u.ID, From: date, To: date})
	if err != nil {
		return nil, err
	}
	b, err := e.balances.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	s := &model.DailySummary{Date: date, CurrentBalance: b.CurrentBalance, Activities: activities}
	if s.Activities == nil {
		s.Activities = []model.Activity{}
	}
	for _, a := range activities {
		if a.Status != model.StatusApproved {
			continue
		}
		switch a.Type {
		case model.TypeEarn:
			s.EarnedMinutes += a.EarnedMinutes
		case model.TypeSpend:
			s.SpentMinutes += a.EarnedMinutes
		case model.TypePenalty:
			s.PenaltyMinutes += a.EarnedMinutes
		}
	}
	s.PreviousBalance = s.CurrentBalance - Sum(activities)
	return s, nil
}

// Statistics totals approved activities between two inclusive dates.
func (e *Engine) Statistics(ctx context.Context, actor auth.Actor, userID, from, to string) (*model.Statistics, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	fromDate, err := e.parseDate("from", from)
	if err != nil {
		return nil, err
	}
	toDate, err := e.parseDate("to", to)
	if err != nil {
		return nil, err
	}
	if toDate.Before(fromDate) {
		return nil, newValidationError("to", "must not be before from")
	}

	activities, err := e.activities.Query(ctx, model.ActivityFilter{
		UserID: u.ID, Status: model.StatusApproved, From: from, To: to,
	})
	if err != nil {
		return nil, err
	}

	st := &model.Statistics{UserID: u.ID, From: from, To: to}
	byCat := map[string]*model.CategoryTotal{}
	for _, a := range activities {
		switch a.Type {
		case model.TypeEarn:
			st.Earned += a.EarnedMinutes
		case model.TypeSpend:
			st.Spent += a.EarnedMinutes
		case model.TypePenalty:
			st.Penalty += a.EarnedMinutes
		}
		ct, ok := byCat[a.Category]
		if !ok {
			ct = &model.CategoryTotal{Category: a.Category, Type: a.Type}
			byCat[a.Category] = ct
		}
		ct.Count++
		ct.Minutes += a.EarnedMinutes
	}
	st.Net = Sum(activities)

	st.ByCategory = make([]model.CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		st.ByCategory = append(st.ByCategory, *ct)
	}
	sort.Slice(st.ByCategory, func(i, j int) bool {
		if st.ByCategory[i].Minutes != st.ByCategory[j].Minutes {
			return st.ByCategory[i].Minutes > st.ByCategory[j].Minutes
		}
		return st.ByCategory[i].Category < st.ByCategory[j].Category
	})
	return st, nil
}
