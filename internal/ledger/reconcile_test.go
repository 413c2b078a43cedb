package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/timebank/internal/model"
)

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(90)
	_, err := f.record("game", 30, "")
	require.NoError(t, err)

	require.NoError(t, f.stores.Balances.Set(ctx, f.student.UserID, 999, testNow))

	res, err := f.engine.Reconcile(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, 999, res.Stored)
	assert.Equal(t, 60, res.Computed)
	assert.Equal(t, 939, res.Drift)
	assert.Equal(t, 2, res.Activities)
	assert.True(t, res.Repaired())
	assert.Equal(t, 60, f.balance(f.student.UserID))

	again, err := f.engine.Reconcile(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.False(t, again.Repaired())
	assert.Equal(t, 60, f.balance(f.student.UserID))
}

func TestReconcileUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(30)
	require.NoError(t, f.stores.Balances.Set(ctx, f.student.UserID, 0, testNow))

	_, err := f.engine.ReconcileUser(ctx, f.student, "")
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := f.engine.ReconcileUser(ctx, f.parent, "")
	require.NoError(t, err)
	assert.Equal(t, f.student.UserID, res.UserID)
	assert.Equal(t, -30, res.Drift)
	assert.Equal(t, KindBalanceReconciled, f.lastEvent().Kind)
}

func TestReconcileAllAndAuditor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.createUser("kid2@example.com", model.RoleStudent, "XYZ789", "")
	f.seed(45)
	require.NoError(t, f.stores.Balances.Set(ctx, second.UserID, 12, testNow))

	results, err := f.engine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 0, f.balance(second.UserID))
	assert.Equal(t, 45, f.balance(f.student.UserID))

	require.NoError(t, f.stores.Balances.Set(ctx, f.student.UserID, 1, testNow))
	auditor := NewAuditor(f.engine, time.Hour)
	assert.Equal(t, 1, auditor.RunOnce(ctx))
	assert.Equal(t, 0, auditor.RunOnce(ctx))

	auditor.Start(ctx)
	auditor.Stop()
	NewAuditor(f.engine, 0).Start(ctx)
}

type failingBalances struct {
	balanceRepo
	err error
}

func (b failingBalances) ApplyDelta(context.Context, string, int, time.Time) (int, error) {
	return 0, b.err
}

func TestStorageFailureReconcilesAndRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(50)

	diskErr := errors.New("disk I/O error")
	stores := f.stores
	stores.Balances = failingBalances{balanceRepo: f.stores.Balances, err: diskErr}
	e := f.newEngine(stores)

	_, err := e.RecordActivity(ctx, f.student, RecordInput{Date: "2026-03-04", Category: "academy", DurationMinutes: 20})
	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.ErrorIs(t, err, diskErr)
	assert.True(t, pf.Reconciled)
	assert.Equal(t, "record", pf.Op)
	assert.Equal(t, f.student.UserID, pf.UserID)

	acts, err := f.stores.Activities.Query(ctx, model.ActivityFilter{UserID: f.student.UserID})
	require.NoError(t, err)
	assert.Len(t, acts, 1, "failed unit must not leave its activity behind")
	f.requireConsistent(f.student.UserID)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.RecordActivity(ctx, f.student, RecordInput{Date: "2026-03-03", Category: "academy", DurationMinutes: 200})
	require.NoError(t, err)

	f.seed(60)
	_, err = f.record("game", 40, "")
	require.NoError(t, err)
	_, err = f.record("coding", 30, "")
	require.NoError(t, err)
	_, err = f.engine.IssuePenalty(ctx, f.parent, PenaltyInput{UserID: f.student.UserID, Category: "no_record"})
	require.NoError(t, err)

	s, err := f.engine.DailySummary(ctx, f.parent, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", s.Date)
	assert.Equal(t, 60, s.EarnedMinutes)
	assert.Equal(t, 40, s.SpentMinutes)
	assert.Equal(t, 60, s.PenaltyMinutes)
	assert.Equal(t, 160, s.CurrentBalance)
	assert.Equal(t, 200, s.PreviousBalance)
	assert.Len(t, s.Activities, 4)

	empty, err := f.engine.DailySummary(ctx, f.student, "", "2026-03-01")
	require.NoError(t, err)
	assert.NotNil(t, empty.Activities)
	assert.Equal(t, empty.CurrentBalance, empty.PreviousBalance)

	_, err = f.engine.DailySummary(ctx, f.student, "", "yesterday")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.RecordActivity(ctx, f.student, RecordInput{Date: "2026-03-03", Category: "academy", DurationMinutes: 100})
	require.NoError(t, err)
	f.seed(20)
	_, err = f.record("homework", 90, "math")
	require.NoError(t, err)
	_, err = f.record("youtube", 30, "")
	require.NoError(t, err)
	_, err = f.record("reading", 30, "")
	require.NoError(t, err)

	st, err := f.engine.Statistics(ctx, f.student, "", "2026-03-01", "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 210, st.Earned)
	assert.Equal(t, 30, st.Spent)
	assert.Equal(t, 180, st.Net)
	require.Len(t, st.ByCategory, 3)
	assert.Equal(t, "academy", st.ByCategory[0].Category)
	assert.Equal(t, 2, st.ByCategory[0].Count)
	assert.Equal(t, 120, st.ByCategory[0].Minutes)
	assert.Equal(t, "homework", st.ByCategory[1].Category)

	_, err = f.engine.Statistics(ctx, f.student, "", "2026-03-04", "2026-03-01")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AddSubject(ctx, f.parent, "Science", "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.engine.AddSubject(ctx, f.student, "math", "")
	assert.ErrorIs(t, err, ErrConflict)

	sci, err := f.engine.AddSubject(ctx, f.student, "Science", "🔬")
	require.NoError(t, err)
	_, err = f.engine.AddSubject(ctx, f.student, "Science", "")
	assert.ErrorIs(t, err, ErrConflict)

	subjects, err := f.engine.Subjects(ctx, f.parent, "")
	require.NoError(t, err)
	assert.Len(t, subjects, 4)

	_, err = f.record("homework", 30, "Science")
	require.NoError(t, err)
	_, err = f.record("homework", 30, sci.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.DeleteSubject(ctx, f.student, "korean"), ErrForbidden)
	require.NoError(t, f.engine.DeleteSubject(ctx, f.student, sci.ID))
	assert.ErrorIs(t, f.engine.DeleteSubject(ctx, f.student, sci.ID), ErrNotFound)

	_, err = f.record("homework", 30, "Science")
	assert.ErrorIs(t, err, ErrValidation)
}
