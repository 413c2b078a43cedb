package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/timebank/internal/model"
)

type BalanceStore struct {
	db *sql.DB
}

func NewBalanceStore(db *sql.DB) *BalanceStore {
	return &BalanceStore{db: db}
}

// Get returns the stored balance, or a zero balance when none exists yet.
func (s *BalanceStore) Get(ctx context.Context, userID string) (*model.Balance, error) {
	b := model.Balance{UserID: userID}
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT current_balance, last_updated FROM balances WHERE user_id = ?`, userID,
	).Scan(&b.CurrentBalance, &b.LastUpdated)
	if err == sql.ErrNoRows {
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// ApplyDelta atomically adds delta to the user's balance and returns the new value.
func (s *BalanceStore) ApplyDelta(ctx context.Context, userID string, delta int, at time.Time) (int, error) {
	var balance int
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO balances (user_id, current_balance, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   current_balance = current_balance + excluded.current_balance,
		   last_updated = excluded.last_updated
		 RETURNING current_balance`,
		userID, delta, at.UTC(),
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("apply balance delta: %w", err)
	}
	return balance, nil
}

// Set overwrites the user's balance.
func (s *BalanceStore) Set(ctx context.Context, userID string, value int, at time.Time) error {
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO balances (user_id, current_balance, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   current_balance = excluded.current_balance,
		   last_updated = excluded.last_updated`,
		userID, value, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (s *BalanceStore) Delete(ctx context.Context, userID string) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM balances WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete balance: %w", err)
	}
	return nil
}
