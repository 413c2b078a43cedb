package ledger

import (
	"context"

	"github.com/dukerupert/timebank/internal/model"
)

type EventKind string

const (
	KindActivityCreated   EventKind = "activity.created"
	KindActivityUpdated   EventKind = "activity.updated"
	KindActivityDeleted   EventKind = "activity.deleted"
	KindActivityApproved  EventKind = "activity.approved"
	KindActivityRejected  EventKind = "activity.rejected"
	KindPenaltyIssued     EventKind = "penalty.issued"
	KindScheduleCreated   EventKind = "schedule.created"
	KindScheduleUpdated   EventKind = "schedule.updated"
	KindScheduleDeleted   EventKind = "schedule.deleted"
	KindScheduleCompleted EventKind = "schedule.completed"
	KindScheduleAbsent    EventKind = "schedule.absent"
	KindScheduleReset     EventKind = "schedule.reset"
	KindBalanceReconciled EventKind = "balance.reconciled"
)

// ChangeEvent describes a committed ledger mutation.
type ChangeEvent struct {
	Kind       EventKind       `json:"kind"`
	UserID     string          `json:"user_id"`
	FamilyCode string          `json:"family_code,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Activity   *model.Activity `json:"activity,omitempty"`
	ScheduleID string          `json:"schedule_id,omitempty"`
	Date       string          `json:"date,omitempty"`
	Balance    int             `json:"balance"`
}

// Publisher receives events after commit. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent)
}

// Fanout publishes to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev ChangeEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

type PublisherFunc func(ctx context.Context, ev ChangeEvent)

func (fn PublisherFunc) Publish(ctx context.Context, ev ChangeEvent) {
	fn(ctx, ev)
}
