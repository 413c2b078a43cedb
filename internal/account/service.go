// Package account handles registration, login, family linking and
// account deletion.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	maxNameLen       = 50
	maxCodeAttempts  = 10
	maxPasswordBytes = 72
)

type userRepo interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetStudentByFamilyCode(ctx context.Context, code string) (*model.User, error)
	FamilyCodeExists(ctx context.Context, code string) (bool, error)
	ListParents(ctx context.Context, code string) ([]model.User, error)
	SetLinkedFamilyCode(ctx context.Context, id, code string) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

type balanceRepo interface {
	Get(ctx context.Context, userID string) (*model.Balance, error)
	Set(ctx context.Context, userID string, value int, at time.Time) error
	Delete(ctx context.Context, userID string) error
}

type activityRepo interface {
	Query(ctx context.Context, f model.ActivityFilter) ([]model.Activity, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type scheduleRepo interface {
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]model.Schedule, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type byUserDeleter interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type subjectRepo interface {
	ListByUser(ctx context.Context, userID string) ([]model.Subject, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type tokenIssuer interface {
	Generate(userID, role string) (string, error)
}

// Archiver stores an encrypted copy of an account before deletion.
type Archiver interface {
	ArchiveAccount(ctx context.Context, userID string, v any) (string, error)
}

// Stores groups the persistence the account service depends on.
type Stores struct {
	Users      userRepo
	Balances   balanceRepo
	Activities activityRepo
	Schedules  scheduleRepo
	Statuses   byUserDeleter
	Subjects   subjectRepo
	Push       byUserDeleter
	Tx         txManager
}

type Service struct {
	log      *slog.Logger
	stores   Stores
	tokens   tokenIssuer
	archiver Archiver
	now      func() time.Time
}

func NewService(logger *slog.Logger, stores Stores, tokens tokenIssuer) *Service {
	return &Service{log: logger, stores: stores, tokens: tokens, now: time.Now}
}

// SetArchiver enables archiving of student accounts before deletion.
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// Result is returned by Register and Login.
type Result struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (i *RegisterInput) Validate() error {
	var errs []ledger.FieldError

	if _, err := mail.ParseAddress(i.Email); err != nil || !strings.Contains(i.Email, "@") {
		errs = append(errs, ledger.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(i.Password) < auth.MinPasswordLength {
		errs = append(errs, ledger.FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength)})
	}
	if len(i.Password) > maxPasswordBytes {
		errs = append(errs, ledger.FieldError{Field: "password", Message: "too long"})
	}
	if i.Name == "" {
		errs = append(errs, ledger.FieldError{Field: "name", Message: "required"})
	}
	if utf8.RuneCountInString(i.Name) > maxNameLen {
		errs = append(errs, ledger.FieldError{Field: "name", Message: "too long (max 50)"})
	}
	if i.Role != model.RoleStudent && i.Role != model.RoleParent {
		errs = append(errs, ledger.FieldError{Field: "role", Message: "must be student or parent"})
	}

	if len(errs) > 0 {
		return &ledger.ValidationError{Errors: errs}
	}
	return nil
}

// Register creates an account and signs it in. Students receive a fresh
// family code and a zero balance.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.stores.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("register lookup: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ledger.ErrConflict)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var created *model.User
	err = s.stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		u := &model.User{
			Email:        in.Email,
			Name:         in.Name,
			Role:         in.Role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if u.IsStudent() {
			code, err := s.newFamilyCode(ctx)
			if err != nil {
				return err
			}
			u.FamilyCode = code
		}

		created, err = s.stores.Users.Create(ctx, u)
		if err != nil {
			return err
		}
		if created.IsStudent() {
			return s.stores.Balances.Set(ctx, created.ID, 0, now)
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: email already registered", ledger.ErrConflict)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	res, err := s.issue(created)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", created.ID, "role", created.Role)
	return res, nil
}

func (s *Service) newFamilyCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := auth.GenerateFamilyCode()
		if err != nil {
			return "", err
		}
		taken, err := s.stores.Users.FamilyCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("no free family code")
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	u, err := s.stores.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", "user_id", u.ID)
	return res, nil
}

func (s *Service) issue(u *model.User) (*Result, error) {
	token, err := s.tokens.Generate(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Result{Token: token, User: u}, nil
}

// Link attaches a parent to the student owning code.
func (s *Service) Link(ctx context.Context, actor auth.Actor, code string) (*model.User, error) {
	if !actor.IsParent() {
		return nil, fmt.Errorf("%w: only parents link to a family", ledger.ErrForbidden)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !auth.ValidFamilyCode(code) {
		return nil, &ledger.ValidationError{Errors: []ledger.FieldError{{Field: "family_code", Message: "must be 6 characters"}}}
	}

	student, err := s.stores.Users.GetStudentByFamilyCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("%w: family", ledger.ErrNotFound)
	}

	u, err := s.stores.Users.SetLinkedFamilyCode(ctx, actor.UserID, code)
	if err != nil {
		return nil, err
	}
	s.log.Info("parent linked", "user_id", actor.UserID, "family_code", code)
	return u, nil
}

// Profile is the signed-in user and, for parents, the linked student.
type Profile struct {
	User    *model.User    `json:"user"`
	Student *model.User    `json:"student,omitempty"`
	Balance *model.Balance `json:"balance,omitempty"`
}

func (s *Service) Me(ctx context.Context, actor auth.Actor) (*Profile, error) {
	u, err := s.stores.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user", ledger.ErrNotFound)
	}

	p := &Profile{User: u}
	student := u
	if !u.IsStudent() {
		student = nil
		if u.LinkedFamilyCode != "" {
			student, err = s.stores.Users.GetStudentByFamilyCode(ctx, u.LinkedFamilyCode)
			if err != nil {
				return nil, err
			}
			p.Student = student
		}
	}
	if student != nil {
		if p.Balance, err = s.stores.Balances.Get(ctx, student.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}
