package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/mpt-session/internal/session"
	"github.com/coder/websocket"
)

// Conn is the part of a WebSocket connection the manager needs.
type Conn interface {
	Close(code websocket.StatusCode, reason string) error
}

// ConnManager tracks the WebSocket connection bound to each session.
type ConnManager struct {
	mu      sync.RWMutex
	active  map[string]Conn
	closing sync.WaitGroup
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{active: make(map[string]Conn)}
}

// GetActive returns the connection bound to sessionID, or nil.
func (m *ConnManager) GetActive(sessionID string) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Register binds conn to sessionID, closing any other connection that held it.
func (m *ConnManager) Register(sessionID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[sessionID]; ok && existing != conn {
		m.closeAsync(sessionID, existing, websocket.StatusPolicyViolation, "session opened elsewhere")
	}
	m.active[sessionID] = conn
	slog.Debug("Chat connection registered", "session_id", sessionID)
}

// Unregister removes conn if it is still the one bound to sessionID.
func (m *ConnManager) Unregister(sessionID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionID]; ok && current == conn {
		delete(m.active, sessionID)
		slog.Debug("Chat connection unregistered", "session_id", sessionID)
	}
}

// CloseSession closes the connection bound to sessionID, if any.
func (m *ConnManager) CloseSession(sessionID, reason string) {
	m.mu.Lock()
	conn, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.closeAsync(sessionID, conn, websocket.StatusNormalClosure, reason)
}

// closeAsync runs the close handshake in the background. A peer that is not
// reading holds the handshake until the library's close timeout.
func (m *ConnManager) closeAsync(sessionID string, conn Conn, code websocket.StatusCode, reason string) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		if err := conn.Close(code, reason); err != nil {
			slog.Debug("Chat connection close failed", "session_id", sessionID, "error", err)
			return
		}
		slog.Info("Chat connection closed", "session_id", sessionID, "reason", reason)
	}()
}

// Wait blocks until every pending close has finished.
func (m *ConnManager) Wait() {
	m.closing.Wait()
}

// Len returns the number of bound connections.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// OnEvict is a session.EvictFunc that closes the connection of an evicted session.
func (m *ConnManager) OnEvict(_ context.Context, e *session.Entry, reason session.EvictReason) {
	m.CloseSession(e.Session.ID, "session "+string(reason))
}
