package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/timebank/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func (s *PushStore) CreateSubscription(ctx context.Context, userID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}

	// LastInsertId is unreliable on conflict update; re-query by endpoint
	return s.getByEndpoint(ctx, endpoint)
}

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	).Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// DeleteByEndpoint removes a subscription. A non-empty userID restricts the
// delete to that user's subscription.
func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint, userID string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = ?`
	args := []any{endpoint}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if _, err := conn(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM push_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete push subscriptions by user: %w", err)
	}
	return res.RowsAffected()
}

// RecordSent records that a notification was sent (for dedup).
func (s *PushStore) RecordSent(ctx context.Context, userID, notifType, refID string) error {
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications_sent (user_id, notification_type, reference_id) VALUES (?, ?, ?)`,
		userID, notifType, refID,
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *PushStore) WasSent(ctx context.Context, userID, notifType, refID string) (bool, error) {
	var count int
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications_sent WHERE user_id = ? AND notification_type = ? AND reference_id = ?`,
		userID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes dedup records older than the given time.
func (s *PushStore) CleanupSent(ctx context.Context, before time.Time) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM notifications_sent WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
