package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/timebank/internal/model"
)

type SubjectStore struct {
	db *sql.DB
}

func NewSubjectStore(db *sql.DB) *SubjectStore {
	return &SubjectStore{db: db}
}

const subjectCols = `id, user_id, name, emoji, created_at`

func (s *SubjectStore) Create(ctx context.Context, userID, name, emoji string) (*model.Subject, error) {
	id := uuid.NewString()
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO subjects (id, user_id, name, emoji) VALUES (?, ?, ?, ?)`,
		id, userID, name, emoji,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert subject: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert subject: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubjectStore) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	var sub model.Subject
	err := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+subjectCols+` FROM subjects WHERE id = ?`, id).
		Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Emoji, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &sub, nil
}

// ListByUser returns the user's custom subjects, oldest first.
func (s *SubjectStore) ListByUser(ctx context.Context, userID string) ([]model.Subject, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+subjectCols+` FROM subjects WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Emoji, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *SubjectStore) Delete(ctx context.Context, id, userID string) error {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM subjects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return expectOne(res, "delete subject")
}

func (s *SubjectStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM subjects WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete subjects by user: %w", err)
	}
	return res.RowsAffected()
}
