// Package api provides HTTP handlers for the session API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/chat"
	"github.com/ashureev/mpt-session/internal/middleware"
	"github.com/ashureev/mpt-session/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Deps are the collaborators of a Handler. Archive and Limiter may be nil.
type Deps struct {
	Chat           *chat.Service
	Catalog        *catalog.Catalog
	Archive        store.Archive
	Conns          *ConnManager
	Limiter        *middleware.RateLimiter
	MaxBodyBytes   int64
	AllowedOrigins []string
	IsDev          bool
}

// Handler serves the /api routes.
type Handler struct {
	chat           *chat.Service
	catalog        *catalog.Catalog
	archive        store.Archive
	conns          *ConnManager
	limiter        *middleware.RateLimiter
	validate       *validator.Validate
	maxBodyBytes   int64
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(d Deps) *Handler {
	conns := d.Conns
	if conns == nil {
		conns = NewConnManager()
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 10
	}
	return &Handler{
		chat:           d.Chat,
		catalog:        d.Catalog,
		archive:        d.Archive,
		conns:          conns,
		limiter:        d.Limiter,
		validate:       newValidator(d.Catalog),
		maxBodyBytes:   maxBody,
		allowedOrigins: d.AllowedOrigins,
		isDev:          d.IsDev,
	}
}

// RegisterRoutes registers the /api routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/scenarios", h.Scenarios)
		r.Get("/stages", h.Stages)
		r.Get("/sessions/{id}", h.GetSession)

		r.Group(func(r chi.Router) {
			if h.limiter.Enabled() {
				r.Use(middleware.RateLimit(h.limiter))
			}
			r.Post("/chat", h.Chat)
			r.Post("/sessions/new", h.NewSession)
			r.Get("/ws/chat", h.ChatWS)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
