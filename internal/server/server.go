package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/timebank/internal/account"
	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/config"
	"github.com/dukerupert/timebank/internal/handler"
	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/middleware"
	"github.com/dukerupert/timebank/internal/store"
	ws "github.com/dukerupert/timebank/internal/websocket"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	DB             *sql.DB
	Engine         *ledger.Engine
	Accounts       *account.Service
	Tokens         *auth.JWTManager
	Users          *store.UserStore
	Push           *store.PushStore
	Hub            *ws.Hub
	VAPIDPublicKey string
}

type Server struct {
	cfg         config.Config
	db          *sql.DB
	tokens      *auth.JWTManager
	users       *store.UserStore
	hub         *ws.Hub
	authH       *handler.AuthHandler
	activityH   *handler.ActivityHandler
	balanceH    *handler.BalanceHandler
	scheduleH   *handler.ScheduleHandler
	subjectH    *handler.SubjectHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(cfg config.Config, d Deps, logger *slog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		db:          d.DB,
		tokens:      d.Tokens,
		users:       d.Users,
		hub:         d.Hub,
		authH:       handler.NewAuthHandler(d.Accounts, logger.With("component", "auth")),
		activityH:   handler.NewActivityHandler(d.Engine, logger.With("component", "activity")),
		balanceH:    handler.NewBalanceHandler(d.Engine, logger.With("component", "balance")),
		scheduleH:   handler.NewScheduleHandler(d.Engine, logger.With("component", "schedule")),
		subjectH:    handler.NewSubjectHandler(d.Engine, logger.With("component", "subject")),
		pushH:       handler.NewPushHandler(d.Push, d.VAPIDPublicKey, logger.With("component", "push_handler")),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthAttempts, cfg.RateLimit.Window),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) authenticate(ctx context.Context, token string) (auth.Actor, error) {
	return middleware.Authenticate(ctx, s.tokens, s.users, token)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.HandleWebSocket(s.hub, s.authenticate, s.logger.With("component", "websocket")))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.rateLimiter, middleware.RealIP))
			r.Post("/auth/register", s.authH.Register)
			r.Post("/auth/login", s.authH.Login)
		})

		r.Get("/categories", s.balanceH.Categories)
		r.Get("/holidays/{date}", s.balanceH.Holiday)
		r.Get("/push/vapid-key", s.pushH.VAPIDKey)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.tokens, s.users))
			s.registerProtectedRoutes(r)
		})
	})

	return r
}

func (s *Server) registerProtectedRoutes(r chi.Router) {
	r.Get("/me", s.authH.Me)
	r.Delete("/me", s.authH.DeleteMe)

	r.Get("/activities", s.activityH.List)
	r.Post("/activities", s.activityH.Record)
	r.Patch("/activities/{id}", s.activityH.Edit)
	r.Delete("/activities/{id}", s.activityH.Delete)

	r.Get("/balance", s.balanceH.Get)
	r.Get("/summary", s.balanceH.Summary)
	r.Get("/statistics", s.balanceH.Statistics)

	r.Get("/schedules", s.scheduleH.List)
	r.Post("/schedules", s.scheduleH.Create)
	r.Get("/schedules/day", s.scheduleH.Day)
	r.Get("/schedules/calendar", s.scheduleH.Calendar)
	r.Put("/schedules/{id}", s.scheduleH.Update)
	r.Delete("/schedules/{id}", s.scheduleH.Delete)
	r.Post("/schedules/{id}/days/{date}/complete", s.scheduleH.Complete)
	r.Post("/schedules/{id}/days/{date}/absent", s.scheduleH.Absent)
	r.Delete("/schedules/{id}/days/{date}", s.scheduleH.Reset)

	r.Get("/subjects", s.subjectH.List)
	r.Post("/subjects", s.subjectH.Create)
	r.Delete("/subjects/{id}", s.subjectH.Delete)

	r.Post("/push/subscribe", s.pushH.Subscribe)
	r.Delete("/push/subscribe", s.pushH.Unsubscribe)

	// Parent-only routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireParent)
		r.Post("/auth/link", s.authH.Link)
		r.Get("/approvals", s.activityH.Pending)
		r.Post("/activities/{id}/approve", s.activityH.Approve)
		r.Post("/activities/{id}/reject", s.activityH.Reject)
		r.Post("/penalties", s.activityH.Penalty)
		r.Post("/balance/reconcile", s.balanceH.Reconcile)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("timebank listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
