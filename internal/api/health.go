package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if h.archive == nil {
		checks["archive"] = "disabled"
	} else if err := h.archive.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "archive", "error", err)
		status["status"] = "degraded"
		checks["archive"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["archive"] = "ok"
	}

	JSON(w, statusCode, status)
}
