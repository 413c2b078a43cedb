package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/timebank/internal/model"
)

type ScheduleStatusStore struct {
	db *sql.DB
}

func NewScheduleStatusStore(db *sql.DB) *ScheduleStatusStore {
	return &ScheduleStatusStore{db: db}
}

func scanScheduleStatus(scanner interface{ Scan(...any) error }) (*model.DailyScheduleStatus, error) {
	var st model.DailyScheduleStatus
	err := scanner.Scan(&st.ID, &st.UserID, &st.ScheduleID, &st.Date, &st.Status, &st.ActivityID, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const scheduleStatusCols = `id, user_id, schedule_id, date, status, activity_id, created_at`

// Get returns the status for a schedule on a date, or nil when none is recorded.
func (s *ScheduleStatusStore) Get(ctx context.Context, scheduleID, date string) (*model.DailyScheduleStatus, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+scheduleStatusCols+` FROM schedule_statuses WHERE schedule_id = ? AND date = ?`,
		scheduleID, date,
	)
	st, err := scanScheduleStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule status: %w", err)
	}
	return st, nil
}

// Set records a status. It returns ErrDuplicate when the schedule already
// has a status for that date.
func (s *ScheduleStatusStore) Set(ctx context.Context, st *model.DailyScheduleStatus) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO schedule_statuses (`+scheduleStatusCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.ScheduleID, st.Date, st.Status, st.ActivityID, st.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("set schedule status: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("set schedule status: %w", err)
	}
	return nil
}

func (s *ScheduleStatusStore) Delete(ctx context.Context, scheduleID, date string) error {
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM schedule_statuses WHERE schedule_id = ? AND date = ?`, scheduleID, date)
	if err != nil {
		return fmt.Errorf("delete schedule status: %w", err)
	}
	return nil
}

// DeleteByActivity removes the completed status that points at an
// activity and reports whether one existed.
func (s *ScheduleStatusStore) DeleteByActivity(ctx context.Context, activityID string) (bool, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM schedule_statuses WHERE activity_id = ?`, activityID)
	if err != nil {
		return false, fmt.Errorf("delete schedule status by activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete schedule status by activity: %w", err)
	}
	return n > 0, nil
}

// ListByUserRange returns the user's statuses between two inclusive dates.
func (s *ScheduleStatusStore) ListByUserRange(ctx context.Context, userID, from, to string) ([]model.DailyScheduleStatus, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+scheduleStatusCols+` FROM schedule_statuses
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedule statuses: %w", err)
	}
	defer rows.Close()

	var statuses []model.DailyScheduleStatus
	for rows.Next() {
		st, err := scanScheduleStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule status: %w", err)
		}
		statuses = append(statuses, *st)
	}
	return statuses, rows.Err()
}

func (s *ScheduleStatusStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM schedule_statuses WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete schedule statuses by user: %w", err)
	}
	return res.RowsAffected()
}
