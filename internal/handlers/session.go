package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/map-engine/internal/middleware"
	"github.com/jwebster45206/map-engine/internal/session"
)

type CreateSessionRequest struct {
	Scenario string `json:"scenario"`
}

type ClickRequest struct {
	StageID string `json:"stage_id"`
}

type ScoreRequest struct {
	StageID    string `json:"stage_id"`
	ExerciseID string `json:"exercise_id"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
}

// SessionHandler drives map sessions.
// Routes:
// POST   /v1/sessions                 - start a session
// GET    /v1/sessions/{id}            - current view
// DELETE /v1/sessions/{id}            - stop and remove
// POST   /v1/sessions/{id}/{action}   - click, score, close, continue, reset, solutions, finish
type SessionHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

func NewSessionHandler(sessions *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type action func(ctx context.Context, id uuid.UUID) (*session.View, error)

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := middleware.FromContext(r.Context(), h.logger)

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if rest == "" {
		if r.Method != http.MethodPost {
			writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r, log)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		writeError(w, log, http.StatusNotFound, "Unknown session route")
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		log.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, log, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.respond(w, log, http.StatusOK, func() (*session.View, error) { return h.sessions.Get(r.Context(), id) })
		case http.MethodDelete:
			h.handleDelete(w, r, log, id)
		default:
			writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}
	switch parts[1] {
	case "click":
		h.handleClick(w, r, log, id)
	case "score":
		h.handleScore(w, r, log, id)
	default:
		act, ok := h.simpleActions()[parts[1]]
		if !ok {
			writeError(w, log, http.StatusNotFound, "Unknown session action: "+parts[1])
			return
		}
		h.respond(w, log, http.StatusOK, func() (*session.View, error) { return act(r.Context(), id) })
	}
}

func (h *SessionHandler) simpleActions() map[string]action {
	return map[string]action{
		"close":     h.sessions.CloseExercise,
		"continue":  h.sessions.ContinueExercise,
		"reset":     h.sessions.Reset,
		"solutions": h.sessions.ShowSolutions,
		"finish":    h.sessions.Finish,
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	req.Scenario = strings.TrimSpace(req.Scenario)
	if req.Scenario == "" {
		writeError(w, log, http.StatusBadRequest, "scenario is required")
		return
	}
	h.respond(w, log, http.StatusCreated, func() (*session.View, error) {
		return h.sessions.Create(r.Context(), req.Scenario)
	})
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, log *slog.Logger, id uuid.UUID) {
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.fail(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleClick(w http.ResponseWriter, r *http.Request, log *slog.Logger, id uuid.UUID) {
	var req ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.StageID == "" {
		writeError(w, log, http.StatusBadRequest, "stage_id is required")
		return
	}
	h.respond(w, log, http.StatusOK, func() (*session.View, error) {
		return h.sessions.Click(r.Context(), id, req.StageID)
	})
}

func (h *SessionHandler) handleScore(w http.ResponseWriter, r *http.Request, log *slog.Logger, id uuid.UUID) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	switch {
	case req.StageID == "" || req.ExerciseID == "":
		writeError(w, log, http.StatusBadRequest, "stage_id and exercise_id are required")
		return
	case req.Score < 0 || req.MaxScore < 0:
		writeError(w, log, http.StatusBadRequest, "score and max_score must not be negative")
		return
	}
	h.respond(w, log, http.StatusOK, func() (*session.View, error) {
		return h.sessions.Score(r.Context(), id, req.StageID, req.ExerciseID, req.Score, req.MaxScore)
	})
}

func (h *SessionHandler) respond(w http.ResponseWriter, log *slog.Logger, status int, fn func() (*session.View, error)) {
	view, err := fn()
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, log, status, view)
}

func (h *SessionHandler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, log, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrScenarioNotFound):
		writeError(w, log, http.StatusNotFound, "Scenario not found")
	case errors.Is(err, session.ErrInvalidScenario):
		writeError(w, log, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error("Session request failed", "error", err)
		writeError(w, log, http.StatusInternalServerError, "Internal server error")
	}
}
