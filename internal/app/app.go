package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/timebank/internal/account"
	"github.com/dukerupert/timebank/internal/archive"
	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/config"
	"github.com/dukerupert/timebank/internal/database"
	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/push"
	"github.com/dukerupert/timebank/internal/server"
	"github.com/dukerupert/timebank/internal/store"
	ws "github.com/dukerupert/timebank/internal/websocket"
)

// App holds the assembled services of one timebank process.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Engine   *ledger.Engine
	Accounts *account.Service
	Tokens   *auth.JWTManager
	Hub      *ws.Hub
	Archiver *archive.Archiver
	Notifier *push.Notifier
	Users    *store.UserStore
	Push     *store.PushStore

	auditor   *ledger.Auditor
	scheduler *push.Scheduler
	logger    *slog.Logger
}

// New opens the database and wires every service described by cfg.
// Push and archiving are enabled only when configured.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a, err := build(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg config.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	users := store.NewUserStore(db)
	balances := store.NewBalanceStore(db)
	activities := store.NewActivityStore(db)
	schedules := store.NewScheduleStore(db)
	statuses := store.NewScheduleStatusStore(db)
	subjects := store.NewSubjectStore(db)
	pushStore := store.NewPushStore(db)
	tx := store.NewTxManager(db)

	engine, err := ledger.New(logger, ledger.Stores{
		Activities: activities,
		Balances:   balances,
		Schedules:  schedules,
		Statuses:   statuses,
		Users:      users,
		Subjects:   subjects,
		Tx:         tx,
	}, ledger.Config{
		TimeZone:             cfg.Ledger.TimeZone,
		BackdateDays:         cfg.Ledger.BackdateDays,
		RetryAttempts:        uint64(cfg.Ledger.RetryAttempts),
		RetryBase:            cfg.Ledger.RetryBase,
		ReconcileConcurrency: cfg.Ledger.ReconcileConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	accounts := account.NewService(logger.With("service", "account"), account.Stores{
		Users:      users,
		Balances:   balances,
		Activities: activities,
		Schedules:  schedules,
		Statuses:   statuses,
		Subjects:   subjects,
		Push:       pushStore,
		Tx:         tx,
	}, tokens)

	a := &App{
		Config:   cfg,
		DB:       db,
		Engine:   engine,
		Accounts: accounts,
		Tokens:   tokens,
		Hub:      ws.NewHub(logger.With("component", "websocket")),
		Users:    users,
		Push:     pushStore,
		auditor:  ledger.NewAuditor(engine, cfg.Ledger.AuditInterval),
		logger:   logger,
	}
	engine.AddPublisher(a.Hub)

	if cfg.Archive.Enabled() {
		arch, err := archive.New(archive.Config{
			Endpoint:   cfg.Archive.Endpoint,
			Bucket:     cfg.Archive.Bucket,
			Region:     cfg.Archive.Region,
			AccessKey:  cfg.Archive.AccessKey,
			SecretKey:  cfg.Archive.SecretKey,
			Passphrase: cfg.Archive.Passphrase,
		}, logger.With("component", "archive"))
		if err != nil {
			return nil, fmt.Errorf("create archiver: %w", err)
		}
		a.Archiver = arch
		accounts.SetArchiver(arch)
	}

	if cfg.Push.Enabled() {
		svc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
		pushLogger := logger.With("component", "push")
		a.Notifier = push.NewNotifier(svc, pushStore, users, pushLogger)
		a.scheduler = push.NewScheduler(a.Notifier, engine, cfg.Push.ReminderHour, pushLogger)
		engine.AddPublisher(a.Notifier)
	}

	return a, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Server builds the HTTP server for the app.
func (a *App) Server() *server.Server {
	return server.New(a.Config, server.Deps{
		DB:             a.DB,
		Engine:         a.Engine,
		Accounts:       a.Accounts,
		Tokens:         a.Tokens,
		Users:          a.Users,
		Push:           a.Push,
		Hub:            a.Hub,
		VAPIDPublicKey: a.Config.Push.VAPIDPublicKey,
	}, a.logger)
}

// Serve runs the HTTP server and background workers until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := a.Server()

	srv.RateLimiter().StartCleanup(ctx, time.Minute)
	a.auditor.Start(ctx)
	defer a.auditor.Stop()
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}
	if a.Notifier != nil {
		defer a.Notifier.Wait()
	}

	err := srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
