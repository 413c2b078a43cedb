package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/metrics"
)

// Message is a real-time change notification sent to a family's clients.
type Message struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      string         `json:"id,omitempty"`
	UserID  string         `json:"user_id,omitempty"`
	Balance *int           `json:"balance,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// MessageFromEvent converts a committed ledger event, e.g. "activity.approved"
// becomes entity "activity" and action "approved".
func MessageFromEvent(ev ledger.ChangeEvent) Message {
	entity, action, _ := strings.Cut(string(ev.Kind), ".")

	var id string
	extra := map[string]any{}
	switch {
	case ev.Activity != nil:
		id = ev.Activity.ID
		extra["activity"] = ev.Activity
	case ev.ScheduleID != "":
		id = ev.ScheduleID
	}
	if ev.Date != "" {
		extra["date"] = ev.Date
	}
	if ev.ActorID != "" {
		extra["actor_id"] = ev.ActorID
	}

	msg := NewMessage(entity, action, id, extra)
	msg.UserID = ev.UserID
	balance := ev.Balance
	msg.Balance = &balance
	return msg
}

// Hub tracks connected clients per family and broadcasts to one family at
// a time.
type Hub struct {
	mu       sync.RWMutex
	families map[string]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		families: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client to its family.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.families[c.family]
	if !ok {
		set = make(map[*Client]struct{})
		h.families[c.family] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.families[c.family]
	_, ok := set[c]
	if ok {
		delete(set, c)
		close(c.send)
		if len(set) == 0 {
			delete(h.families, c.family)
		}
	}
	h.mu.Unlock()
	if ok {
		metrics.WebSocketClients.Dec()
	}
}

// Broadcast sends a message to every client of one family.
func (h *Hub) Broadcast(family string, msg Message) {
	if family == "" {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.families[family] {
		select {
		case c.send <- data:
		default:
			// buffer full, drop rather than block the ledger
			h.logger.Debug("websocket client slow, message dropped", "family_code", family)
		}
	}
}

// Publish forwards a ledger event to the event's family.
func (h *Hub) Publish(_ context.Context, ev ledger.ChangeEvent) {
	h.Broadcast(ev.FamilyCode, MessageFromEvent(ev))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.families {
		n += len(set)
	}
	return n
}
