// Package chat provides the WebSocket transport for the conversation engine.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks active WebSocket connections per user and session so
// engine-initiated pushes (idle nudges) can reach the right client.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a new WebSocket connection for a user/session.
func (r *Registry) Register(userID, sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[userID]; !exists {
		r.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := r.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	r.active[userID][sessionID] = conn
	slog.Info("Chat connection registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a WebSocket connection for a user/session.
func (r *Registry) Unregister(userID, sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessions, ok := r.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(r.active, userID)
			}
			slog.Info("Chat connection unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Get returns the active connection for a user and session, or nil.
func (r *Registry) Get(userID, sessionID string) *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Push sends a JSON payload to the connection for a user/session.
// Missing connections are not an error: the visitor may have left.
func (r *Registry) Push(userID, sessionID string, v interface{}) {
	conn := r.Get(userID, sessionID)
	if conn == nil {
		slog.Debug("No chat connection for push", "user_id", userID, "session_id", sessionID)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal chat push", "error", err)
		return
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("Chat push write error", "error", err, "user_id", userID)
	}
}
