// Package ledger keeps each student's stored balance equal to the sum of
// the signed contributions of their approved activities.
//
// Every mutating operation runs as one unit: the activity or schedule write
// and the balance delta commit in a single transaction, serialized per user
// and retried on transient storage errors. A unit that still fails is
// followed by a reconciliation of the user's balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dukerupert/timebank/internal/model"
)

type activityRepo interface {
	Create(ctx context.Context, a *model.Activity) (*model.Activity, error)
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	Update(ctx context.Context, a *model.Activity) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, f model.ActivityFilter) ([]model.Activity, error)
}

type balanceRepo interface {
	Get(ctx context.Context, userID string) (*model.Balance, error)
	ApplyDelta(ctx context.Context, userID string, delta int, at time.Time) (int, error)
	Set(ctx context.Context, userID string, value int, at time.Time) error
}

type scheduleRepo interface {
	Create(ctx context.Context, sc *model.Schedule) (*model.Schedule, error)
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]model.Schedule, error)
	ListActive(ctx context.Context) ([]model.Schedule, error)
	Update(ctx context.Context, sc *model.Schedule) (*model.Schedule, error)
	Delete(ctx context.Context, id string) error
}

type scheduleStatusRepo interface {
	Get(ctx context.Context, scheduleID, date string) (*model.DailyScheduleStatus, error)
	Set(ctx context.Context, st *model.DailyScheduleStatus) error
	Delete(ctx context.Context, scheduleID, date string) error
	DeleteByActivity(ctx context.Context, activityID string) (bool, error)
	ListByUserRange(ctx context.Context, userID, from, to string) ([]model.DailyScheduleStatus, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetStudentByFamilyCode(ctx context.Context, code string) (*model.User, error)
	ListStudents(ctx context.Context) ([]model.User, error)
}

type subjectRepo interface {
	Create(ctx context.Context, userID, name, emoji string) (*model.Subject, error)
	ListByUser(ctx context.Context, userID string) ([]model.Subject, error)
	Delete(ctx context.Context, id, userID string) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores groups the persistence the engine depends on.
type Stores struct {
	Activities activityRepo
	Balances   balanceRepo
	Schedules  scheduleRepo
	Statuses   scheduleStatusRepo
	Users      userRepo
	Subjects   subjectRepo
	Tx         txManager
}

type Config struct {
	// TimeZone decides what "today" is for record and schedule dates.
	TimeZone string
	// BackdateDays is how many days before today a student may record.
	BackdateDays         int
	RetryAttempts        uint64
	RetryBase            time.Duration
	ReconcileConcurrency int
}

func DefaultConfig() Config {
	return Config{
		TimeZone:             "Asia/Seoul",
		BackdateDays:         1,
		RetryAttempts:        3,
		RetryBase:            20 * time.Millisecond,
		ReconcileConcurrency: 4,
	}
}

// Engine implements the ledger operations.
type Engine struct {
	log        *slog.Logger
	activities activityRepo
	balances   balanceRepo
	schedules  scheduleRepo
	statuses   scheduleStatusRepo
	users      userRepo
	subjects   subjectRepo
	tx         txManager

	pub       Fanout
	locks     *userLocks
	cfg       Config
	loc       *time.Location
	now       func() time.Time
	sanitizer *bluemonday.Policy
}

func New(logger *slog.Logger, s Stores, cfg Config) (*Engine, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}
	if cfg.ReconcileConcurrency < 1 {
		cfg.ReconcileConcurrency = 1
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig().RetryBase
	}

	return &Engine{
		log:        logger.With("service", "ledger"),
		activities: s.Activities,
		balances:   s.Balances,
		schedules:  s.Schedules,
		statuses:   s.Statuses,
		users:      s.Users,
		subjects:   s.Subjects,
		tx:         s.Tx,
		locks:      newUserLocks(),
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// AddPublisher registers a subscriber for committed changes. Call it
// before the engine serves requests.
func (e *Engine) AddPublisher(p Publisher) {
	e.pub = append(e.pub, p)
}

// Location is the zone used for calendar dates.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today returns the current date in the ledger's zone.
func (e *Engine) Today() time.Time {
	n := e.now().In(e.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, e.loc)
}

func (e *Engine) publish(ctx context.Context, ev ChangeEvent) {
	if len(e.pub) == 0 {
		return
	}
	e.pub.Publish(ctx, ev)
}

func (e *Engine) sanitize(s string) string {
	return e.sanitizer.Sanitize(s)
}
