package push

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
)

const sentRetention = 30 * 24 * time.Hour

type reminderSource interface {
	Unmarked(ctx context.Context, date string) (map[string][]model.Schedule, error)
	Location() *time.Location
}

// Scheduler reminds students once a day about schedules they have not
// marked completed or absent.
type Scheduler struct {
	mu       sync.RWMutex
	notifier *Notifier
	source   reminderSource
	hour     int
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler that starts reminding at hour
// (local to the ledger's time zone).
func NewScheduler(n *Notifier, source reminderSource, hour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		notifier: n,
		source:   source,
		hour:     hour,
		interval: 5 * time.Minute,
		now:      time.Now,
		log:      logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.log.Error("schedule reminders", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce sends today's reminders if the reminder hour has passed and
// returns how many students were reminded.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().In(s.source.Location())
	if now.Hour() < s.hour {
		return 0, nil
	}
	date := now.Format(recurrence.DateLayout)

	unmarked, err := s.source.Unmarked(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("unmarked schedules: %w", err)
	}

	reminded := 0
	for userID, schedules := range unmarked {
		sent, err := s.notifier.subs.WasSent(ctx, userID, model.NotifTypeScheduleReminder, date)
		if err != nil {
			s.log.Error("check reminder sent", "user_id", userID, "error", err)
			continue
		}
		if sent {
			continue
		}

		if err := s.notifier.NotifyUser(ctx, userID, reminderPayload(date, schedules)); err != nil {
			s.log.Warn("send schedule reminder", "user_id", userID, "error", err)
			continue
		}
		if err := s.notifier.subs.RecordSent(ctx, userID, model.NotifTypeScheduleReminder, date); err != nil {
			s.log.Error("record reminder sent", "user_id", userID, "error", err)
			continue
		}
		reminded++
	}

	if err := s.notifier.subs.CleanupSent(ctx, now.Add(-sentRetention)); err != nil {
		s.log.Warn("cleanup sent notifications", "error", err)
	}
	if reminded > 0 {
		s.log.Info("schedule reminders sent", "date", date, "students", reminded)
	}
	return reminded, nil
}

func reminderPayload(date string, schedules []model.Schedule) Payload {
	names := make([]string, len(schedules))
	for i, sc := range schedules {
		names[i] = sc.Name
	}
	sort.Strings(names)

	body := fmt.Sprintf("%d schedules are not marked yet: %s", len(names), strings.Join(names, ", "))
	if len(names) == 1 {
		body = fmt.Sprintf("%s is not marked yet", names[0])
	}
	return Payload{
		Title: "Schedule check",
		Body:  body,
		URL:   "/schedules",
		Tag:   "schedules-" + date,
		TTL:   6 * time.Hour,
	}
}
