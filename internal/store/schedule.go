package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/timebank/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.Schedule, error) {
	var sc model.Schedule
	var active int

	err := scanner.Scan(
		&sc.ID, &sc.UserID, &sc.FamilyCode, &sc.Name, &sc.Emoji, &sc.Category, &sc.DaysOfWeek,
		&sc.StartTime, &sc.EndTime, &sc.DurationMinutes, &sc.Multiplier, &active,
		&sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.IsActive = active != 0
	return &sc, nil
}

const scheduleCols = `id, user_id, family_code, name, emoji, category, days_of_week,
	start_time, end_time, duration_minutes, multiplier, is_active, created_at, updated_at`

func (s *ScheduleStore) Create(ctx context.Context, sc *model.Schedule) (*model.Schedule, error) {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}

	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.UserID, sc.FamilyCode, sc.Name, sc.Emoji, sc.Category, sc.DaysOfWeek,
		sc.StartTime, sc.EndTime, sc.DurationMinutes, sc.Multiplier.String(), boolToInt(sc.IsActive),
		sc.CreatedAt.UTC(), sc.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return s.GetByID(ctx, sc.ID)
}

func (s *ScheduleStore) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

// ListByUser returns the user's schedules ordered by start time then name.
func (s *ScheduleStore) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]model.Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY start_time ASC, name ASC`

	rows, err := conn(ctx, s.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// ListActive returns active schedules across all users.
func (s *ScheduleStore) ListActive(ctx context.Context) ([]model.Schedule, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE is_active = 1 ORDER BY user_id, start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows *sql.Rows) ([]model.Schedule, error) {
	var schedules []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

func (s *ScheduleStore) Update(ctx context.Context, sc *model.Schedule) (*model.Schedule, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx,
		`UPDATE schedules SET name = ?, emoji = ?, category = ?, days_of_week = ?, start_time = ?,
		 end_time = ?, duration_minutes = ?, multiplier = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		sc.Name, sc.Emoji, sc.Category, sc.DaysOfWeek, sc.StartTime,
		sc.EndTime, sc.DurationMinutes, sc.Multiplier.String(), boolToInt(sc.IsActive), sc.UpdatedAt.UTC(),
		sc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	if err := expectOne(res, "update schedule"); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, sc.ID)
}

// Delete removes the schedule. Its daily statuses cascade.
func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM schedules WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete schedules by user: %w", err)
	}
	return res.RowsAffected()
}
