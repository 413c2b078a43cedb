package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/timebank/internal/auth"
)

// Authenticator resolves an access token to an actor.
type Authenticator func(ctx context.Context, token string) (auth.Actor, error)

// HandleWebSocket upgrades authenticated connections and subscribes them to
// the actor's family. Browsers cannot set headers on a WebSocket handshake,
// so the token is read from the "token" query parameter.
func HandleWebSocket(hub *Hub, authenticate Authenticator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		actor, err := authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		family := actor.Family()
		if family == "" {
			http.Error(w, "not linked to a family", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // served to the family's own devices from any origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		logger.Debug("websocket connected", "user_id", actor.UserID, "family_code", family)
		NewClient(hub, conn, family).Run(r.Context())
		logger.Debug("websocket disconnected", "user_id", actor.UserID)
	}
}
