package ledger

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/database"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/store"
)

// Wednesday 2026-03-04, 10:00 in Seoul.
var testNow = time.Date(2026, 3, 4, 1, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	db      *sql.DB
	engine  *Engine
	stores  Stores
	student auth.Actor
	parent  auth.Actor

	mu     sync.Mutex
	events []ChangeEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{t: t, db: db}
	f.stores = Stores{
		Activities: store.NewActivityStore(db),
		Balances:   store.NewBalanceStore(db),
		Schedules:  store.NewScheduleStore(db),
		Statuses:   store.NewScheduleStatusStore(db),
		Users:      store.NewUserStore(db),
		Subjects:   store.NewSubjectStore(db),
		Tx:         store.NewTxManager(db),
	}
	f.engine = f.newEngine(f.stores)

	f.student = f.createUser("kid@example.com", model.RoleStudent, "ABC234", "")
	f.parent = f.createUser("mom@example.com", model.RoleParent, "", "ABC234")
	return f
}

func (f *fixture) newEngine(s Stores) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(logger, s, DefaultConfig())
	require.NoError(f.t, err)
	e.now = func() time.Time { return testNow }
	e.AddPublisher(PublisherFunc(func(_ context.Context, ev ChangeEvent) {
		f.mu.Lock()
		f.events = append(f.events, ev)
		f.mu.Unlock()
	}))
	return e
}

func (f *fixture) createUser(email, role, familyCode, linked string) auth.Actor {
	f.t.Helper()
	u, err := store.NewUserStore(f.db).Create(context.Background(), &model.User{
		Email:            email,
		Name:             email,
		Role:             role,
		FamilyCode:       familyCode,
		LinkedFamilyCode: linked,
		PasswordHash:     "x",
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	})
	require.NoError(f.t, err)
	return auth.ActorFor(u)
}

func (f *fixture) balance(userID string) int {
	f.t.Helper()
	b, err := f.stores.Balances.Get(context.Background(), userID)
	require.NoError(f.t, err)
	return b.CurrentBalance
}

// approvedSum is the balance implied by the user's approved activities.
func (f *fixture) approvedSum(userID string) int {
	f.t.Helper()
	acts, err := f.stores.Activities.Query(context.Background(), model.ActivityFilter{UserID: userID, Status: model.StatusApproved})
	require.NoError(f.t, err)
	return Sum(acts)
}

func (f *fixture) requireConsistent(userID string) {
	f.t.Helper()
	require.Equal(f.t, f.approvedSum(userID), f.balance(userID), "stored balance must equal approved activities")
}

func (f *fixture) record(category string, duration int, subject string) (*model.Activity, error) {
	return f.engine.RecordActivity(context.Background(), f.student, RecordInput{
		Date:            "2026-03-04",
		Category:        category,
		Subject:         subject,
		DurationMinutes: duration,
	})
}

// seed gives the student an approved academy balance of minutes.
func (f *fixture) seed(minutes int) {
	f.t.Helper()
	_, err := f.record("academy", minutes, "")
	require.NoError(f.t, err)
}

func (f *fixture) eventKinds() []EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]EventKind, len(f.events))
	for i, ev := range f.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (f *fixture) lastEvent() ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.events)
	return f.events[len(f.events)-1]
}
