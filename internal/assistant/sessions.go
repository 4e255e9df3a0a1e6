package assistant

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks open assistant websockets per user and tab session.
// A new connection for the same user and session replaces the old one.
type SessionManager struct {
	mu     sync.Mutex
	active map[string]map[string]*websocket.Conn
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{active: make(map[string]map[string]*websocket.Conn)}
}

// Register adds conn, closing any connection it replaces.
func (m *SessionManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		sessions = make(map[string]*websocket.Conn)
		m.active[userID] = sessions
	}
	if existing, ok := sessions[sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	sessions[sessionID] = conn
	slog.Debug("Assistant session registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the registered connection.
func (m *SessionManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok || sessions[sessionID] != conn {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
}

// Count returns the number of open connections.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// CloseAll closes every connection, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, sessions := range m.active {
		for _, conn := range sessions {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, userID)
	}
}
