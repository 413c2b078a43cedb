package ledger

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/timebank/internal/metrics"
	"github.com/dukerupert/timebank/internal/store"
)

// unit runs fn as one logical ledger transaction for userID.
//
// fn runs inside a database transaction while the user's lock is held.
// Busy and locked storage errors are retried with exponential backoff. Any
// other storage failure triggers a reconciliation of the user's balance and
// is returned as a *PartialFailureError.
func (e *Engine) unit(ctx context.Context, userID, op string, fn func(ctx context.Context) error) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	backoff := retry.WithMaxRetries(e.cfg.RetryAttempts, retry.WithJitterPercent(20, retry.NewExponential(e.cfg.RetryBase)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.tx.RunInTx(ctx, fn)
		if err != nil && store.IsBusy(err) {
			metrics.UnitRetries.Inc()
			e.log.Debug("ledger unit busy, retrying", "op", op, "user_id", userID, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}

	if isDomainError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.LedgerErrors.WithLabelValues(op, errorClass(err)).Inc()
		return err
	}

	e.log.Error("ledger unit failed, reconciling", "op", op, "user_id", userID, "error", err)
	pf := &PartialFailureError{UserID: userID, Op: op, Err: err}
	if _, rerr := e.reconcileLocked(context.WithoutCancel(ctx), userID); rerr != nil {
		e.log.Error("reconcile after failure", "op", op, "user_id", userID, "error", rerr)
	} else {
		pf.Reconciled = true
	}
	metrics.LedgerErrors.WithLabelValues(op, "partial_failure").Inc()
	return pf
}

// applyDelta adds delta to the balance inside the current unit and returns
// the resulting balance.
func (e *Engine) applyDelta(ctx context.Context, userID, op string, delta int) (int, error) {
	if delta == 0 {
		b, err := e.balances.Get(ctx, userID)
		if err != nil {
			return 0, err
		}
		return b.CurrentBalance, nil
	}
	bal, err := e.balances.ApplyDelta(ctx, userID, delta, e.now())
	if err != nil {
		return 0, err
	}
	metrics.BalanceMutations.WithLabelValues(op).Inc()
	e.log.Debug("balance delta applied", "op", op, "user_id", userID, "delta", delta, "balance", bal)
	return bal, nil
}
