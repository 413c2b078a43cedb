package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/timebank/internal/account"
	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/ledger"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

type errorBody struct {
	Error      string              `json:"error"`
	Fields     []ledger.FieldError `json:"fields,omitempty"`
	Balance    *int                `json:"balance,omitempty"`
	Requested  *int                `json:"requested,omitempty"`
	Reconciled *bool               `json:"reconciled,omitempty"`
}

// writeError maps ledger and account errors to HTTP responses. Anything
// unrecognized is logged and reported as a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		insufficient *ledger.InsufficientBalanceError
		validation   *ledger.ValidationError
		partial      *ledger.PartialFailureError
	)

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:     "insufficient balance",
			Balance:   &insufficient.Balance,
			Requested: &insufficient.Requested,
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: validation.Errors})
	case errors.Is(err, ledger.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, ledger.ErrForbidden):
		writeMessage(w, http.StatusForbidden, trimKind(err, ledger.ErrForbidden))
	case errors.Is(err, ledger.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, ledger.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.As(err, &partial):
		logger.Error("ledger partial failure", "user_id", partial.UserID, "op", partial.Op, "reconciled", partial.Reconciled, "error", partial.Err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage failure", Reconciled: &partial.Reconciled})
	default:
		logger.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func trimKind(err, kind error) string {
	msg := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	if msg == "" {
		return kind.Error()
	}
	return msg
}

// actor returns the authenticated actor. Routes are mounted behind
// RequireAuth, so a missing actor is a wiring bug.
func actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := auth.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
	}
	return a, ok
}
