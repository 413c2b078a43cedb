package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
)

type ActivityHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

func NewActivityHandler(engine *ledger.Engine, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{engine: engine, logger: logger}
}

type recordRequest struct {
	Date            string `json:"date"`
	Category        string `json:"category"`
	Subject         string `json:"subject"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
}

// Record handles POST /api/activities
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req recordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	act, err := h.engine.RecordActivity(r.Context(), a, ledger.RecordInput{
		Date:            req.Date,
		Category:        req.Category,
		Subject:         req.Subject,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// List handles GET /api/activities
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := model.ActivityFilter{
		UserID: q.Get("userId"),
		Status: model.ActivityStatus(q.Get("status")),
		Type:   model.ActivityType(q.Get("type")),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	acts, err := h.engine.ListActivities(r.Context(), a, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}

type editRequest struct {
	Date            *string `json:"date"`
	Subject         *string `json:"subject"`
	DurationMinutes *int    `json:"duration_minutes"`
	Description     *string `json:"description"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
}

// Edit handles PATCH /api/activities/{id}
func (h *ActivityHandler) Edit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req editRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	act, err := h.engine.EditActivity(r.Context(), a, chi.URLParam(r, "id"), ledger.EditInput{
		Date:            req.Date,
		Subject:         req.Subject,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// Delete handles DELETE /api/activities/{id}
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteActivity(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Approve handles POST /api/activities/{id}/approve
func (h *ActivityHandler) Approve(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	act, err := h.engine.ApproveActivity(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/activities/{id}/reject. The body is optional.
func (h *ActivityHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	act, err := h.engine.RejectActivity(r.Context(), a, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// Pending handles GET /api/approvals
func (h *ActivityHandler) Pending(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	acts, err := h.engine.PendingActivities(r.Context(), a)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}

type penaltyRequest struct {
	UserID      string `json:"user_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Penalty handles POST /api/penalties
func (h *ActivityHandler) Penalty(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req penaltyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	act, err := h.engine.IssuePenalty(r.Context(), a, ledger.PenaltyInput{
		UserID:      req.UserID,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}
