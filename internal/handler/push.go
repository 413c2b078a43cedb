package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/timebank/internal/model"
)

type subscriptionStore interface {
	CreateSubscription(ctx context.Context, userID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint, userID string) error
}

type PushHandler struct {
	subs      subscriptionStore
	publicKey string
	logger    *slog.Logger
}

// NewPushHandler creates the push subscription handler. An empty publicKey
// means push is disabled and the VAPID key endpoint reports 404.
func NewPushHandler(subs subscriptionStore, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, publicKey: publicKey, logger: logger}
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeMessage(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe. Subscribing an endpoint again
// replaces its keys.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !strings.HasPrefix(req.Endpoint, "https://") || req.P256dh == "" || req.Auth == "" {
		writeMessage(w, http.StatusBadRequest, "https endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.subs.CreateSubscription(r.Context(), a.UserID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles DELETE /api/push/subscribe
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeMessage(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.subs.DeleteByEndpoint(r.Context(), req.Endpoint, a.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
