package ledger

import (
	"context"
	"sync"
	"time"
)

// Auditor periodically reconciles every student's balance.
type Auditor struct {
	mu       sync.RWMutex
	engine   *Engine
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewAuditor(engine *Engine, interval time.Duration) *Auditor {
	return &Auditor{engine: engine, interval: interval}
}

// Start begins the audit loop. A non-positive interval disables it.
func (a *Auditor) Start(ctx context.Context) {
	if a.interval <= 0 {
		return
	}
	a.mu.Lock()
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.mu.Unlock()

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.RunOnce(ctx)
			}
		}
	}()
}

// Stop waits for a running pass to finish.
func (a *Auditor) Stop() {
	a.mu.RLock()
	cancel := a.cancel
	done := a.done
	a.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce reconciles all students and returns how many had drift.
func (a *Auditor) RunOnce(ctx context.Context) int {
	results, err := a.engine.ReconcileAll(ctx)
	if err != nil {
		a.engine.log.Error("audit failed", "error", err)
	}

	repaired := 0
	for _, r := range results {
		if r.Repaired() {
			repaired++
		}
	}
	a.engine.log.Info("audit complete", "students", len(results), "repaired", repaired)
	return repaired
}
