package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/database"
	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeArchiver struct {
	calls []Archive
	err   error
}

func (f *fakeArchiver) ArchiveAccount(_ context.Context, userID string, v any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, v.(Archive))
	return "accounts/" + userID, nil
}

type testEnv struct {
	svc    *Service
	stores Stores
	jwt    *auth.JWTManager
	push   *store.PushStore
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "account.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	push := store.NewPushStore(db)
	stores := Stores{
		Users:      store.NewUserStore(db),
		Balances:   store.NewBalanceStore(db),
		Activities: store.NewActivityStore(db),
		Schedules:  store.NewScheduleStore(db),
		Statuses:   store.NewScheduleStatusStore(db),
		Subjects:   store.NewSubjectStore(db),
		Push:       push,
		Tx:         store.NewTxManager(db),
	}
	jwt := auth.NewJWTManager(testSecret, "timebank", time.Hour)
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), stores, jwt)
	return &testEnv{svc: svc, stores: stores, jwt: jwt, push: push}
}

func (e *testEnv) register(t *testing.T, email, role string) *Result {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{Email: email, Password: "secret1", Name: "Name", Role: role})
	require.NoError(t, err)
	return res
}

func TestRegisterStudent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	res, err := env.svc.Register(ctx, RegisterInput{Email: "  Kid@Example.com ", Password: "secret1", Name: "Kid", Role: "Student"})
	require.NoError(t, err)
	assert.Equal(t, "kid@example.com", res.User.Email)
	assert.Equal(t, model.RoleStudent, res.User.Role)
	assert.True(t, auth.ValidFamilyCode(res.User.FamilyCode))
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	sub, role, err := env.jwt.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sub)
	assert.Equal(t, model.RoleStudent, role)

	b, err := env.stores.Balances.Get(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.CurrentBalance)
}

func TestRegisterValidation(t *testing.T) {
	env := setup(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "nope", Password: "123", Role: "admin"})
	require.ErrorIs(t, err, ledger.ErrValidation)
	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := map[string]bool{}
	for _, fe := range ve.Errors {
		fields[fe.Field] = true
	}
	assert.Equal(t, map[string]bool{"email": true, "password": true, "name": true, "role": true}, fields)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setup(t)
	env.register(t, "mom@example.com", model.RoleParent)

	_, err := env.svc.Register(context.Background(), RegisterInput{Email: "MOM@example.com", Password: "secret1", Name: "Mom", Role: model.RoleParent})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestLogin(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	reg := env.register(t, "mom@example.com", model.RoleParent)

	res, err := env.svc.Login(ctx, "Mom@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.Empty(t, res.User.FamilyCode, "parents do not own a family code")

	_, err = env.svc.Login(ctx, "mom@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLinkAndMe(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kid := env.register(t, "kid@example.com", model.RoleStudent)
	mom := env.register(t, "mom@example.com", model.RoleParent)

	_, err := env.svc.Link(ctx, auth.ActorFor(kid.User), kid.User.FamilyCode)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
	_, err = env.svc.Link(ctx, auth.ActorFor(mom.User), "abc")
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = env.svc.Link(ctx, auth.ActorFor(mom.User), "ZZZZZZ")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	linked, err := env.svc.Link(ctx, auth.ActorFor(mom.User), " "+kid.User.FamilyCode+" ")
	require.NoError(t, err)
	assert.Equal(t, kid.User.FamilyCode, linked.LinkedFamilyCode)

	p, err := env.svc.Me(ctx, auth.ActorFor(linked))
	require.NoError(t, err)
	require.NotNil(t, p.Student)
	assert.Equal(t, kid.User.ID, p.Student.ID)
	require.NotNil(t, p.Balance)
	assert.Equal(t, kid.User.ID, p.Balance.UserID)

	unlinked := env.register(t, "dad@example.com", model.RoleParent)
	p, err = env.svc.Me(ctx, auth.ActorFor(unlinked.User))
	require.NoError(t, err)
	assert.Nil(t, p.Student)
	assert.Nil(t, p.Balance)
}

func TestDeleteStudentAccount(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kid := env.register(t, "kid@example.com", model.RoleStudent)
	mom := env.register(t, "mom@example.com", model.RoleParent)
	_, err := env.svc.Link(ctx, auth.ActorFor(mom.User), kid.User.FamilyCode)
	require.NoError(t, err)

	_, err = env.stores.Subjects.(*store.SubjectStore).Create(ctx, kid.User.ID, "Science", "")
	require.NoError(t, err)
	_, err = env.push.CreateSubscription(ctx, kid.User.ID, "https://push.example/1", "p", "a", "phone")
	require.NoError(t, err)

	arch := &fakeArchiver{}
	env.svc.SetArchiver(arch)

	require.NoError(t, env.svc.DeleteAccount(ctx, auth.ActorFor(kid.User)))

	require.Len(t, arch.calls, 1)
	assert.Equal(t, kid.User.ID, arch.calls[0].User.ID)
	assert.Len(t, arch.calls[0].Subjects, 1)

	gone, err := env.stores.Users.GetByID(ctx, kid.User.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	subs, err := env.push.ListByUser(ctx, kid.User.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	parent, err := env.stores.Users.GetByID(ctx, mom.User.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.LinkedFamilyCode)
}

func TestDeleteAccountStopsWhenArchiveFails(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kid := env.register(t, "kid@example.com", model.RoleStudent)
	env.svc.SetArchiver(&fakeArchiver{err: errors.New("bucket unreachable")})

	err := env.svc.DeleteAccount(ctx, auth.ActorFor(kid.User))
	require.Error(t, err)

	still, err := env.stores.Users.GetByID(ctx, kid.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

type failingDeleter struct{ err error }

func (f failingDeleter) DeleteByUser(context.Context, string) (int64, error) { return 0, f.err }

func TestDeleteAccountAccumulatesFailures(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kid := env.register(t, "kid@example.com", model.RoleStudent)

	pushErr := errors.New("push table locked")
	statusErr := errors.New("status table locked")
	env.svc.stores.Push = failingDeleter{err: pushErr}
	env.svc.stores.Statuses = failingDeleter{err: statusErr}

	err := env.svc.DeleteAccount(ctx, auth.ActorFor(kid.User))
	require.Error(t, err)
	assert.ErrorIs(t, err, pushErr)
	assert.ErrorIs(t, err, statusErr)

	still, err := env.stores.Users.GetByID(ctx, kid.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, still, "user survives a partial cleanup")
}

func TestDeleteParentAccount(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	mom := env.register(t, "mom@example.com", model.RoleParent)
	arch := &fakeArchiver{}
	env.svc.SetArchiver(arch)

	require.NoError(t, env.svc.DeleteAccount(ctx, auth.ActorFor(mom.User)))
	assert.Empty(t, arch.calls)

	err := env.svc.DeleteAccount(ctx, auth.ActorFor(mom.User))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
