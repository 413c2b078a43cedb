package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/metrics"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/valuation"
)

const sendTimeout = 30 * time.Second

type sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint, userID string) error
	RecordSent(ctx context.Context, userID, notifType, refID string) error
	WasSent(ctx context.Context, userID, notifType, refID string) (bool, error)
	CleanupSent(ctx context.Context, before time.Time) error
}

type parentLister interface {
	ListParents(ctx context.Context, code string) ([]model.User, error)
}

// Notifier turns ledger events into push notifications: parents hear about
// activities awaiting approval, students about reviews and penalties.
type Notifier struct {
	sender sender
	subs   subscriptionStore
	users  parentLister
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewNotifier(s sender, subs subscriptionStore, users parentLister, logger *slog.Logger) *Notifier {
	return &Notifier{sender: s, subs: subs, users: users, log: logger}
}

// NotifyUser sends payload to every subscription of userID. Expired
// subscriptions are removed; other failures are returned together.
func (n *Notifier) NotifyUser(ctx context.Context, userID string, payload Payload) error {
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	var errs error
	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			metrics.PushSent.WithLabelValues("sent").Inc()
		case errors.Is(err, ErrExpired):
			metrics.PushSent.WithLabelValues("expired").Inc()
			if derr := n.subs.DeleteByEndpoint(ctx, sub.Endpoint, userID); derr != nil {
				errs = multierr.Append(errs, derr)
			}
		default:
			metrics.PushSent.WithLabelValues("error").Inc()
			errs = multierr.Append(errs, fmt.Errorf("device %q: %w", sub.DeviceName, err))
		}
	}
	return errs
}

// Publish sends the notifications for ev in the background.
func (n *Notifier) Publish(ctx context.Context, ev ledger.ChangeEvent) {
	if ev.Activity == nil {
		return
	}
	switch ev.Kind {
	case ledger.KindActivityCreated, ledger.KindActivityApproved, ledger.KindActivityRejected, ledger.KindPenaltyIssued:
	default:
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := n.deliver(ctx, ev); err != nil {
			n.log.Warn("push notification failed", "kind", ev.Kind, "user_id", ev.UserID, "error", err)
		}
	}()
}

// Wait blocks until background deliveries have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ev ledger.ChangeEvent) error {
	a := ev.Activity
	label := a.Category
	if c, ok := valuation.Lookup(a.Category); ok {
		label = c.Label
	}

	switch ev.Kind {
	case ledger.KindActivityCreated:
		if a.Status != model.StatusPending {
			return nil
		}
		parents, err := n.users.ListParents(ctx, ev.FamilyCode)
		if err != nil {
			return err
		}
		payload := Payload{
			Title: "Approval needed",
			Body:  fmt.Sprintf("%s: %d minutes awaiting approval", label, a.EarnedMinutes),
			URL:   "/approvals",
			Tag:   "activity-" + a.ID,
		}
		var errs error
		for _, p := range parents {
			errs = multierr.Append(errs, n.once(ctx, p.ID, model.NotifTypeActivityPending, a.ID, payload))
		}
		return errs

	case ledger.KindActivityApproved, ledger.KindActivityRejected:
		verb := "approved"
		if ev.Kind == ledger.KindActivityRejected {
			verb = "rejected"
		}
		body := fmt.Sprintf("%s (%d minutes) was %s", label, a.EarnedMinutes, verb)
		if a.RejectReason != "" {
			body += ": " + a.RejectReason
		}
		return n.once(ctx, a.UserID, model.NotifTypeActivityReviewed, a.ID, Payload{
			Title: "Activity " + verb, Body: body, URL: "/activities", Tag: "activity-" + a.ID,
		})

	case ledger.KindPenaltyIssued:
		return n.once(ctx, a.UserID, model.NotifTypePenaltyIssued, a.ID, Payload{
			Title: "Penalty",
			Body:  fmt.Sprintf("%s: -%d minutes. Balance is now %d.", label, a.EarnedMinutes, ev.Balance),
			URL:   "/activities",
			Tag:   "penalty-" + a.ID,

			Urgent: true,
		})
	}
	return nil
}

// once sends a notification unless one of the same type and reference was
// already sent to the user.
func (n *Notifier) once(ctx context.Context, userID, notifType, refID string, payload Payload) error {
	sent, err := n.subs.WasSent(ctx, userID, notifType, refID)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}
	if err := n.NotifyUser(ctx, userID, payload); err != nil {
		return err
	}
	return n.subs.RecordSent(ctx, userID, notifType, refID)
}
