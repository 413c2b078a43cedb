package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/metrics"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/valuation"
)

// ReconcileResult reports one reconciliation pass.
type ReconcileResult struct {
	UserID     string `json:"user_id"`
	Stored     int    `json:"stored"`
	Computed   int    `json:"computed"`
	Drift      int    `json:"drift"`
	Activities int    `json:"activities"`
}

// Repaired reports whether the stored balance was overwritten.
func (r ReconcileResult) Repaired() bool {
	return r.Drift != 0
}

// Reconcile recomputes userID's balance from their approved activities and
// overwrites the stored value. Running it again changes nothing.
func (e *Engine) Reconcile(ctx context.Context, userID string) (ReconcileResult, error) {
	unlock := e.locks.lock(userID)
	defer unlock()
	return e.reconcileLocked(ctx, userID)
}

// ReconcileUser is Reconcile on behalf of a linked parent.
func (e *Engine) ReconcileUser(ctx context.Context, actor auth.Actor, userID string) (ReconcileResult, error) {
	if !actor.IsParent() {
		return ReconcileResult{}, forbidden("only parents reconcile balances")
	}
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return ReconcileResult{}, err
	}
	res, err := e.Reconcile(ctx, u.ID)
	if err != nil {
		return res, err
	}
	e.publish(ctx, ChangeEvent{Kind: KindBalanceReconciled, UserID: u.ID, FamilyCode: u.FamilyCode, ActorID: actor.UserID, Balance: res.Computed})
	return res, nil
}

func (e *Engine) reconcileLocked(ctx context.Context, userID string) (ReconcileResult, error) {
	res := ReconcileResult{UserID: userID}
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		approved, err := e.activities.Query(ctx, model.ActivityFilter{UserID: userID, Status: model.StatusApproved})
		if err != nil {
			return err
		}
		b, err := e.balances.Get(ctx, userID)
		if err != nil {
			return err
		}

		res.Stored = b.CurrentBalance
		res.Activities = len(approved)
		res.Computed = Sum(approved)
		res.Drift = res.Stored - res.Computed
		if res.Drift == 0 {
			return nil
		}
		return e.balances.Set(ctx, userID, res.Computed, e.now())
	})
	if err != nil {
		return res, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	metrics.ReconcileRuns.Inc()
	if res.Repaired() {
		metrics.ReconcileDrift.Inc()
		metrics.ReconcileDriftMinutes.Observe(float64(abs(res.Drift)))
		e.log.Warn("balance drift repaired", "user_id", userID, "stored", res.Stored, "computed", res.Computed, "drift", res.Drift)
	}
	return res, nil
}

// ReconcileAll reconciles every student with bounded concurrency. It
// returns the results of the passes that completed and the first error.
func (e *Engine) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	students, err := e.users.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	var mu sync.Mutex
	results := make([]ReconcileResult, 0, len(students))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ReconcileConcurrency)
	for _, u := range students {
		g.Go(func() error {
			res, err := e.Reconcile(gctx, u.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	metrics.ReconcileLastRun.Set(float64(time.Now().Unix()))
	return results, err
}

// Sum is the balance implied by a set of activities.
func Sum(activities []model.Activity) int {
	total := 0
	for _, a := range activities {
		total += valuation.Contribution(a)
	}
	return total
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
