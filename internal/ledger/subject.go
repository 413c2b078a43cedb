package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/store"
)

// Subjects returns the default subjects followed by the student's own.
func (e *Engine) Subjects(ctx context.Context, actor auth.Actor, userID string) ([]model.Subject, error) {
	u, err := e.resolveStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	custom, err := e.subjects.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	out := append([]model.Subject{}, model.DefaultSubjects...)
	return append(out, custom...), nil
}

func (e *Engine) AddSubject(ctx context.Context, actor auth.Actor, name, emoji string) (*model.Subject, error) {
	if !actor.IsStudent() {
		return nil, forbidden("only students add subjects")
	}
	name = e.sanitize(strings.TrimSpace(name))
	if name == "" {
		return nil, newValidationError("name", "required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, newValidationError("name", "too long (max 50)")
	}
	for _, s := range model.DefaultSubjects {
		if strings.EqualFold(s.ID, name) || strings.EqualFold(s.Name, name) {
			return nil, conflict("subject already exists")
		}
	}

	s, err := e.subjects.Create(ctx, actor.UserID, name, emoji)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, conflict("subject already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return s, nil
}

// DeleteSubject removes a custom subject. Activities keep the subject text.
func (e *Engine) DeleteSubject(ctx context.Context, actor auth.Actor, id string) error {
	for _, s := range model.DefaultSubjects {
		if s.ID == id {
			return forbidden("default subjects cannot be deleted")
		}
	}
	err := e.subjects.Delete(ctx, id, actor.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("subject")
	}
	return err
}
