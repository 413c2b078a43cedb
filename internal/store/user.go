package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/timebank/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var familyCode, linked sql.NullString
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &familyCode, &linked, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.FamilyCode = familyCode.String
	u.LinkedFamilyCode = linked.String
	return &u, nil
}

const userCols = `id, email, name, role, family_code, linked_family_code, password_hash, created_at, updated_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a user. It returns ErrDuplicate when the email or family
// code is already taken.
func (s *UserStore) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.TrimSpace(u.Email), u.Name, u.Role, nullString(u.FamilyCode), nullString(u.LinkedFamilyCode),
		u.PasswordHash, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, u.ID)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetStudentByFamilyCode returns the student who owns the family code.
func (s *UserStore) GetStudentByFamilyCode(ctx context.Context, code string) (*model.User, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE family_code = ? AND role = ?`, code, model.RoleStudent)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by family code: %w", err)
	}
	return u, nil
}

// ListParents returns the parents linked to a family code.
func (s *UserStore) ListParents(ctx context.Context, code string) ([]model.User, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE linked_family_code = ? AND role = ? ORDER BY created_at ASC`,
		code, model.RoleParent)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListStudents returns every student account.
func (s *UserStore) ListStudents(ctx context.Context) ([]model.User, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE role = ? ORDER BY created_at ASC`, model.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]model.User, error) {
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// FamilyCodeExists reports whether any user already owns the code.
func (s *UserStore) FamilyCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE family_code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check family code: %w", err)
	}
	return n > 0, nil
}

func (s *UserStore) SetLinkedFamilyCode(ctx context.Context, id, code string) (*model.User, error) {
	_, err := conn(ctx, s.db).ExecContext(ctx,
		`UPDATE users SET linked_family_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullString(code), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set linked family code: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
