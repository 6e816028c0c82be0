package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/luminova-studio/siteline/internal/conversation"
	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/identity"
	"github.com/luminova-studio/siteline/internal/store"
)

// WebSocketHandler serves the live chat channel. Visitor turns arrive
// as JSON frames and assistant replies (including engine-initiated
// nudges) flow back on the same connection.
type WebSocketHandler struct {
	repo          store.Repository
	mgr           *conversation.Manager
	registry      *Registry
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new chat WebSocket handler.
func NewWebSocketHandler(repo store.Repository, mgr *conversation.Manager, registry *Registry, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		repo:          repo,
		mgr:           mgr,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// Notifier returns the push callback the conversation manager uses to
// deliver idle nudges.
func (h *WebSocketHandler) Notifier() conversation.Notifier {
	return func(userID, sessionID string, msg domain.Message) {
		h.registry.Push(userID, sessionID, outboundFrame{
			Type:     "nudge",
			Messages: []domain.Message{msg},
		})
	}
}

// inboundFrame represents a client-to-server chat frame.
type inboundFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	OptionID string `json:"option_id,omitempty"`
}

// outboundFrame represents a server-to-client chat frame.
type outboundFrame struct {
	Type       string           `json:"type"`
	Messages   []domain.Message `json:"messages,omitempty"`
	FormActive bool             `json:"form_active,omitempty"`
	FormStep   domain.FormStep  `json:"form_step,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("Chat connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.registry.Register(userID, sessionID, ws)
	defer h.registry.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, userID, sessionID)
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			h.writeFrame(ws, outboundFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case "message":
			// Typing indicator covers the oracle round trip.
			h.writeFrame(ws, outboundFrame{Type: "typing"})
			res, err := h.mgr.HandleMessage(ctx, userID, sessionID, frame.Content)
			h.writeTurn(ws, userID, res, err)
		case "quick_option":
			res, err := h.mgr.HandleQuickOption(ctx, userID, sessionID, frame.OptionID)
			h.writeTurn(ws, userID, res, err)
		case "reset":
			if err := h.mgr.Reset(ctx, userID, sessionID); err != nil {
				slog.Error("Failed to reset chat session", "error", err, "user_id", userID)
				h.writeFrame(ws, outboundFrame{Type: "error", Error: "reset failed"})
				continue
			}
			h.writeFrame(ws, outboundFrame{Type: "reset"})
		case "ping":
			h.writeFrame(ws, outboundFrame{Type: "pong"})
		default:
			h.writeFrame(ws, outboundFrame{Type: "error", Error: "unknown frame type"})
		}

		// Update last seen asynchronously with timeout.
		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, userID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

func (h *WebSocketHandler) writeTurn(ws *websocket.Conn, userID string, res *conversation.TurnResult, err error) {
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownOption) {
			h.writeFrame(ws, outboundFrame{Type: "error", Error: "unknown quick option"})
			return
		}
		slog.Error("Chat turn failed", "error", err, "user_id", userID)
		h.writeFrame(ws, outboundFrame{Type: "error", Error: "something went wrong"})
		return
	}
	h.writeFrame(ws, outboundFrame{
		Type:       "assistant",
		Messages:   res.Messages,
		FormActive: res.FormActive,
		FormStep:   res.FormStep,
	})
}

func (h *WebSocketHandler) writeFrame(ws *websocket.Conn, frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal chat frame", "error", err)
		return
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("Chat frame write error", "error", err)
	}
}
