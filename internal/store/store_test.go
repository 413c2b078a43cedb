package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/timebank/internal/database"
	"github.com/dukerupert/timebank/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestStudent(t *testing.T, db *sql.DB, email, familyCode string) *model.User {
	t.Helper()
	now := time.Now()
	u, err := NewUserStore(db).Create(context.Background(), &model.User{
		Email:        email,
		Name:         "Student",
		Role:         model.RoleStudent,
		FamilyCode:   familyCode,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	return u
}
