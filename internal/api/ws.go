package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/mpt-session/internal/chat"
	"github.com/ashureev/mpt-session/internal/middleware"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

type wsFrame struct {
	Type string `json:"type"`
}

type wsMetaFrame struct {
	Type string `json:"type"`
	chat.Meta
}

type wsDoneFrame struct {
	Type string `json:"type"`
	chat.Done
}

type wsErrorFrame struct {
	Type    string       `json:"type"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Status  int          `json:"status,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// wsSink sends turn events as JSON text frames. It also remembers the
// session of the last turn so later frames may omit sessionId.
type wsSink struct {
	ctx       context.Context
	ws        *websocket.Conn
	conns     *ConnManager
	sessionID string
}

func (s *wsSink) write(v any) error {
	return writeJSON(s.ctx, s.ws, v)
}

func (s *wsSink) Meta(m chat.Meta) error {
	if m.SessionID != s.sessionID {
		if s.sessionID != "" {
			s.conns.Unregister(s.sessionID, s.ws)
		}
		s.sessionID = m.SessionID
		s.conns.Register(m.SessionID, s.ws)
	}
	return s.write(wsMetaFrame{Type: "meta", Meta: m})
}

func (s *wsSink) Chunk(content string) error {
	return s.write(map[string]string{"type": "chunk", "content": content})
}

func (s *wsSink) Done(d chat.Done) error {
	return s.write(wsDoneFrame{Type: "done", Done: d})
}

func (s *wsSink) Error(message string) error {
	return s.write(wsErrorFrame{Type: "error", Message: message})
}

var _ chat.EventSink = (*wsSink)(nil)

// ChatWS handles GET /api/ws/chat. Each inbound text frame is a chat
// request, answered with the same events the SSE transport sends.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	ip := middleware.IPFromRequest(r)
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", ip)
		return
	}
	ws.SetReadLimit(h.maxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := &wsSink{ctx: ctx, ws: ws, conns: h.conns}
	defer func() {
		if sink.sessionID != "" {
			h.conns.Unregister(sink.sessionID, ws)
		}
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	slog.Info("Chat WebSocket connected", "ip", ip)
	h.wsLoop(ctx, ws, sink, ip)
}

func (h *Handler) wsLoop(ctx context.Context, ws *websocket.Conn, sink *wsSink, ip string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Chat WebSocket closed", "session_id", sink.sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sink.sessionID)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: "text_frames_only", Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		var head wsFrame
		if err := json.Unmarshal(data, &head); err == nil && head.Type == "ping" {
			if err := writeJSON(ctx, ws, wsFrame{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
			continue
		}

		if err := h.wsTurn(ctx, ws, sink, ip, data); err != nil {
			slog.Debug("Chat WebSocket write failed", "error", err, "session_id", sink.sessionID)
			return
		}
	}
}

// wsTurn runs one turn for a frame. A returned error means the connection
// is unusable.
func (h *Handler) wsTurn(ctx context.Context, ws *websocket.Conn, sink *wsSink, ip string, data []byte) error {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return writeJSON(ctx, ws, wsErrorFrame{
			Type: "error", Error: "validation_failed", Status: http.StatusBadRequest,
			Details: []FieldError{{Field: "", Rule: "json"}},
		})
	}
	req.normalize()
	if err := h.validate.Struct(&req); err != nil {
		return writeJSON(ctx, ws, wsErrorFrame{
			Type: "error", Error: "validation_failed", Status: http.StatusBadRequest,
			Details: validationDetails(err),
		})
	}
	if !h.limiter.Allow(ip) {
		return writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: "rate_limited", Status: http.StatusTooManyRequests})
	}

	if req.SessionID == "" {
		req.SessionID = sink.sessionID
	}
	err := h.chat.RunTurn(ctx, chat.Request{
		Message:    req.Message,
		SessionID:  req.SessionID,
		ScenarioID: req.ScenarioID,
	}, sink)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		status, code := turnError(err)
		return writeJSON(ctx, ws, wsErrorFrame{Type: "error", Error: code, Status: status})
	}
	return ctx.Err()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
