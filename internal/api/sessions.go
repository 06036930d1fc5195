package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/chat"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/session"
	"github.com/go-chi/chi/v5"
)

type newSessionResponse struct {
	chat.Meta
	Phase string `json:"phase"`
}

type sessionView struct {
	chat.Meta
	Phase        string                `json:"phase"`
	Messages     []domain.Message      `json:"messages"`
	StageHistory []domain.Stage        `json:"stageHistory"`
	RequestType  *domain.RequestType   `json:"requestType"`
	Context      domain.TherapyContext `json:"context"`
	CreatedAt    time.Time             `json:"createdAt"`
	LastActiveAt time.Time             `json:"lastActiveAt"`
	Archived     bool                  `json:"archived"`
	ArchivedAt   *time.Time            `json:"archivedAt,omitempty"`
}

func newSessionView(e *session.Entry) sessionView {
	return sessionView{
		Meta:         chat.MetaFor(e),
		Phase:        e.Session.Phase,
		Messages:     e.Session.Messages,
		StageHistory: e.State.StageHistory,
		RequestType:  e.State.RequestType,
		Context:      e.State.Context,
		CreatedAt:    e.Session.CreatedAt,
		LastActiveAt: e.Session.LastActiveAt,
	}
}

// NewSession handles POST /api/sessions/new.
func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	e, err := h.chat.NewSession(r.Context(), req.ScenarioID)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrUnknownScenario):
		writeValidationError(w, []FieldError{{Field: "scenarioId", Rule: "scenario"}})
		return
	case errors.Is(err, session.ErrCapacity):
		Error(w, http.StatusServiceUnavailable, "capacity_reached")
		return
	default:
		slog.Error("Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	JSON(w, http.StatusOK, newSessionResponse{Meta: chat.MetaFor(e), Phase: e.Session.Phase})
}

// GetSession handles GET /api/sessions/{id}. Live sessions win over the
// archive.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := h.chat.Snapshot(id)
	if err == nil {
		JSON(w, http.StatusOK, newSessionView(e))
		return
	}
	if !errors.Is(err, session.ErrNotFound) {
		slog.Error("Failed to read session", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	if h.archive != nil {
		t, err := h.archive.GetTranscript(r.Context(), id)
		if err != nil {
			slog.Error("Failed to read archived session", "error", err, "session_id", id)
			Error(w, http.StatusInternalServerError, "archive_unavailable")
			return
		}
		if t != nil {
			view := newSessionView(&session.Entry{Session: t.Session, State: t.State})
			view.Archived = true
			view.ArchivedAt = &t.ArchivedAt
			JSON(w, http.StatusOK, view)
			return
		}
	}

	Error(w, http.StatusNotFound, "session_not_found")
}

// Scenarios handles GET /api/scenarios. The body is a bare JSON array.
func (h *Handler) Scenarios(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.catalog.Scenarios)
}

// Stages handles GET /api/stages. The body is a bare JSON array in stage order.
func (h *Handler) Stages(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, chat.Stages())
}
