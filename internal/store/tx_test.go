package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunInTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	u := createTestStudent(t, db, "kid@example.com", "ABC234")
	tm := NewTxManager(db)
	bs := NewBalanceStore(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := bs.ApplyDelta(ctx, u.ID, 60, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	b, _ := bs.Get(ctx, u.ID)
	if b.CurrentBalance != 0 {
		t.Errorf("balance = %d, want 0 after rollback", b.CurrentBalance)
	}
}

func TestRunInTxCommitsAndNests(t *testing.T) {
	db := setupTestDB(t)
	u := createTestStudent(t, db, "kid@example.com", "ABC234")
	tm := NewTxManager(db)
	bs := NewBalanceStore(db)
	ctx := context.Background()

	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := bs.ApplyDelta(ctx, u.ID, 60, time.Now()); err != nil {
			return err
		}
		return tm.RunInTx(ctx, func(ctx context.Context) error {
			_, err := bs.ApplyDelta(ctx, u.ID, 15, time.Now())
			return err
		})
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}

	b, _ := bs.Get(ctx, u.ID)
	if b.CurrentBalance != 75 {
		t.Errorf("balance = %d, want 75", b.CurrentBalance)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(errors.New("plain")) {
		t.Error("plain error should not be busy")
	}
	if IsBusy(nil) {
		t.Error("nil should not be busy")
	}
}
