package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/model"
)

type tokenValidator interface {
	Validate(token string) (string, string, error)
}

type userLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth validates the bearer token, loads the user and stores the
// resulting auth.Actor in the request context. The user is reloaded on
// every request so a new family link takes effect without a new token.
func RequireAuth(tokens tokenValidator, users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			actor, err := Authenticate(r.Context(), tokens, users, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

// Authenticate resolves a token to the actor it belongs to.
func Authenticate(ctx context.Context, tokens tokenValidator, users userLoader, token string) (auth.Actor, error) {
	sub, _, err := tokens.Validate(token)
	if err != nil {
		return auth.Actor{}, err
	}
	u, err := users.GetByID(ctx, sub)
	if err != nil {
		return auth.Actor{}, err
	}
	if u == nil {
		return auth.Actor{}, auth.ErrInvalidToken
	}
	return auth.ActorFor(u), nil
}

// RequireParent rejects actors that are not parents.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parents only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
