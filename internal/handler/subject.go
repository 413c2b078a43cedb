package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
)

type SubjectHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

func NewSubjectHandler(engine *ledger.Engine, logger *slog.Logger) *SubjectHandler {
	return &SubjectHandler{engine: engine, logger: logger}
}

// List handles GET /api/subjects
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	subjects, err := h.engine.Subjects(r.Context(), a, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

type subjectRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Create handles POST /api/subjects
func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req subjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.engine.AddSubject(r.Context(), a, req.Name, req.Emoji)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// Delete handles DELETE /api/subjects/{id}
func (h *SubjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteSubject(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
