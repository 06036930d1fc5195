package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/chat"
	"github.com/ashureev/mpt-session/internal/session"
)

// Chat handles POST /api/chat and streams the reply as SSE.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	req.normalize()
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	sink, ok := newSSESink(r.Context(), w)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	err := h.chat.RunTurn(r.Context(), chat.Request{
		Message:    req.Message,
		SessionID:  req.SessionID,
		ScenarioID: req.ScenarioID,
	}, sink)
	if err != nil && r.Context().Err() != nil {
		return
	}
	if err != nil {
		status, code := turnError(err)
		if status == http.StatusBadRequest {
			writeValidationError(w, []FieldError{{Field: "scenarioId", Rule: "scenario"}})
			return
		}
		Error(w, status, code)
	}
}

// turnError maps a RunTurn error to an HTTP status and error code.
func turnError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		return http.StatusConflict, "turn_in_progress"
	case errors.Is(err, session.ErrCapacity):
		return http.StatusServiceUnavailable, "capacity_reached"
	case errors.Is(err, catalog.ErrUnknownScenario):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, chat.ErrGenerationUnavailable):
		return http.StatusBadGateway, "generation_unavailable"
	default:
		slog.Error("Unexpected turn error", "error", err)
		return http.StatusInternalServerError, "internal_error"
	}
}
