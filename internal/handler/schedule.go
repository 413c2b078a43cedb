package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/recurrence"
)

type ScheduleHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

func NewScheduleHandler(engine *ledger.Engine, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{engine: engine, logger: logger}
}

type scheduleRequest struct {
	Name            string           `json:"name"`
	Emoji           string           `json:"emoji"`
	Category        string           `json:"category"`
	DaysOfWeek      string           `json:"days_of_week"`
	StartTime       string           `json:"start_time"`
	EndTime         string           `json:"end_time"`
	DurationMinutes int              `json:"duration_minutes"`
	Multiplier      *decimal.Decimal `json:"multiplier"`
	IsActive        *bool            `json:"is_active"`
}

func (req scheduleRequest) input() ledger.ScheduleInput {
	return ledger.ScheduleInput{
		Name:            req.Name,
		Emoji:           req.Emoji,
		Category:        req.Category,
		DaysOfWeek:      req.DaysOfWeek,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		Multiplier:      req.Multiplier,
		IsActive:        req.IsActive,
	}
}

// List handles GET /api/schedules
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.engine.ListSchedules(r.Context(), a, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Schedule{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sc, err := h.engine.CreateSchedule(r.Context(), a, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// Update handles PUT /api/schedules/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sc, err := h.engine.UpdateSchedule(r.Context(), a, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// Delete handles DELETE /api/schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteSchedule(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Day handles GET /api/schedules/day. The date defaults to today.
func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = h.engine.Today().Format(recurrence.DateLayout)
	}

	days, err := h.engine.ScheduleDay(r.Context(), a, q.Get("userId"), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if days == nil {
		days = []ledger.ScheduleDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

// Calendar handles GET /api/schedules/calendar. The range defaults to the
// last seven days.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	today := h.engine.Today()
	from, to := q.Get("from"), q.Get("to")
	if to == "" {
		to = today.Format(recurrence.DateLayout)
	}
	if from == "" {
		from = today.AddDate(0, 0, -6).Format(recurrence.DateLayout)
	}

	days, err := h.engine.ScheduleCalendar(r.Context(), a, q.Get("userId"), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// Complete handles POST /api/schedules/{id}/days/{date}/complete
func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	act, err := h.engine.MaterializeSchedule(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// Absent handles POST /api/schedules/{id}/days/{date}/absent
func (h *ScheduleHandler) Absent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.MarkAbsent(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "date")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles DELETE /api/schedules/{id}/days/{date}
func (h *ScheduleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.ResetScheduleStatus(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "date")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
