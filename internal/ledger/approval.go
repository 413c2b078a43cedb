package ledger

import (
	"fmt"

	"github.com/dukerupert/timebank/internal/model"
)

type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventEdit    Event = "edit"
	EventDelete  Event = "delete"
)

// Effect is what a transition does to the owner's balance.
type Effect int

const (
	EffectNone    Effect = iota
	EffectApply          // add the signed contribution
	EffectAdjust         // add new minus old contribution
	EffectReverse        // subtract the signed contribution
)

func (e Effect) String() string {
	switch e {
	case EffectApply:
		return "apply"
	case EffectAdjust:
		return "adjust"
	case EffectReverse:
		return "reverse"
	}
	return "none"
}

type transitionKey struct {
	from  model.ActivityStatus
	event Event
}

type transitionResult struct {
	to     model.ActivityStatus
	effect Effect
}

// deleted is the pseudo-status of a removed activity.
const deleted model.ActivityStatus = ""

var transitions = map[transitionKey]transitionResult{
	{model.StatusPending, EventApprove}: {model.StatusApproved, EffectApply},
	{model.StatusPending, EventReject}:  {model.StatusRejected, EffectNone},
	{model.StatusPending, EventEdit}:    {model.StatusPending, EffectNone},
	{model.StatusPending, EventDelete}:  {deleted, EffectNone},
	{model.StatusApproved, EventEdit}:   {model.StatusApproved, EffectAdjust},
	{model.StatusApproved, EventDelete}: {deleted, EffectReverse},
	{model.StatusRejected, EventDelete}: {deleted, EffectNone},
}

// Initial returns the creation status. Activities that need no approval
// apply to the balance immediately.
func Initial(needsApproval bool) (model.ActivityStatus, Effect) {
	if needsApproval {
		return model.StatusPending, EffectNone
	}
	return model.StatusApproved, EffectApply
}

// Transition looks up the legal move for an event. Rejected activities
// accept only deletion.
func Transition(from model.ActivityStatus, ev Event) (model.ActivityStatus, Effect, error) {
	r, ok := transitions[transitionKey{from, ev}]
	if !ok {
		return from, EffectNone, fmt.Errorf("%w: cannot %s a %s activity", ErrInvalidTransition, ev, from)
	}
	return r.to, r.effect, nil
}
