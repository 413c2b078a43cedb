package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dukerupert/timebank/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var needsApproval int
	var approvedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.UserID, &a.FamilyCode, &a.Date, &a.Type, &a.Category, &a.Subject,
		&a.DurationMinutes, &a.Multiplier, &a.EarnedMinutes, &needsApproval, &a.Status,
		&a.Description, &a.StartTime, &a.EndTime, &a.ScheduleID, &a.RejectReason,
		&a.CreatedAt, &a.UpdatedAt, &a.ApprovedBy, &approvedAt,
	)
	if err != nil {
		return nil, err
	}

	a.NeedsApproval = needsApproval != 0
	if approvedAt.Valid {
		t := approvedAt.Time
		a.ApprovedAt = &t
	}
	return &a, nil
}

const activityCols = `id, user_id, family_code, date, type, category, subject,
	duration_minutes, multiplier, earned_minutes, needs_approval, status,
	description, start_time, end_time, schedule_id, reject_reason,
	created_at, updated_at, approved_by, approved_at`

// Create inserts the activity, assigning an ID when it has none.
func (s *ActivityStore) Create(ctx context.Context, a *model.Activity) (*model.Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO activities (`+activityCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.FamilyCode, a.Date, a.Type, a.Category, a.Subject,
		a.DurationMinutes, a.Multiplier.String(), a.EarnedMinutes, boolToInt(a.NeedsApproval), a.Status,
		a.Description, a.StartTime, a.EndTime, a.ScheduleID, a.RejectReason,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(), a.ApprovedBy, nullTime(a.ApprovedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return s.GetByID(ctx, a.ID)
}

func (s *ActivityStore) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// Update writes every mutable field of the activity.
func (s *ActivityStore) Update(ctx context.Context, a *model.Activity) error {
	res, err := conn(ctx, s.db).ExecContext(ctx,
		`UPDATE activities SET date = ?, subject = ?, duration_minutes = ?, multiplier = ?,
		 earned_minutes = ?, status = ?, description = ?, start_time = ?, end_time = ?,
		 reject_reason = ?, updated_at = ?, approved_by = ?, approved_at = ?
		 WHERE id = ?`,
		a.Date, a.Subject, a.DurationMinutes, a.Multiplier.String(),
		a.EarnedMinutes, a.Status, a.Description, a.StartTime, a.EndTime,
		a.RejectReason, a.UpdatedAt.UTC(), a.ApprovedBy, nullTime(a.ApprovedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return expectOne(res, "update activity")
}

func (s *ActivityStore) Delete(ctx context.Context, id string) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return expectOne(res, "delete activity")
}

// DeleteByUser removes every activity owned by userID and returns the count.
func (s *ActivityStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM activities WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete activities by user: %w", err)
	}
	return res.RowsAffected()
}

// Query returns activities matching the filter, newest first.
func (s *ActivityStore) Query(ctx context.Context, f model.ActivityFilter) ([]model.Activity, error) {
	b := sq.Select(activityCols).From("activities")
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.FamilyCode != "" {
		b = b.Where(sq.Eq{"family_code": f.FamilyCode})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.Type != "" {
		b = b.Where(sq.Eq{"type": f.Type})
	}
	if f.From != "" {
		b = b.Where(sq.GtOrEq{"date": f.From})
	}
	if f.To != "" {
		b = b.Where(sq.LtOrEq{"date": f.To})
	}
	b = b.OrderBy("created_at DESC", "rowid DESC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activity query: %w", err)
	}

	rows, err := conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
