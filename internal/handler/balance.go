package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
	"github.com/dukerupert/timebank/internal/valuation"
)

type BalanceHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

func NewBalanceHandler(engine *ledger.Engine, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{engine: engine, logger: logger}
}

// Get handles GET /api/balance
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	b, err := h.engine.Balance(r.Context(), a, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Summary handles GET /api/summary. The date defaults to today.
func (h *BalanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = h.engine.Today().Format(recurrence.DateLayout)
	}

	s, err := h.engine.DailySummary(r.Context(), a, q.Get("userId"), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Statistics handles GET /api/statistics
func (h *BalanceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	s, err := h.engine.Statistics(r.Context(), a, q.Get("userId"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Reconcile handles POST /api/balance/reconcile
func (h *BalanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := h.engine.ReconcileUser(r.Context(), a, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Categories handles GET /api/categories, optionally filtered by ?type=
func (h *BalanceHandler) Categories(w http.ResponseWriter, r *http.Request) {
	t := model.ActivityType(r.URL.Query().Get("type"))
	switch t {
	case "":
		writeJSON(w, http.StatusOK, valuation.All())
	case model.TypeEarn, model.TypeSpend, model.TypeNeutral, model.TypePenalty:
		writeJSON(w, http.StatusOK, valuation.ByType(t))
	default:
		writeError(w, h.logger, &ledger.ValidationError{Errors: []ledger.FieldError{
			{Field: "type", Message: "must be earn, spend, neutral or penalty"},
		}})
	}
}

type holidayResponse struct {
	Date      string `json:"date"`
	IsHoliday bool   `json:"is_holiday"`
	Name      string `json:"name,omitempty"`
}

// Holiday handles GET /api/holidays/{date}
func (h *BalanceHandler) Holiday(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	d, err := recurrence.ParseDate(date, h.engine.Location())
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	is, name := valuation.IsHoliday(d)
	writeJSON(w, http.StatusOK, holidayResponse{Date: date, IsHoliday: is, Name: name})
}
