package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luminova-studio/siteline/internal/conversation"
	"github.com/luminova-studio/siteline/internal/identity"
)

// maxChatBodySize bounds chat request bodies (64KB is generous for a
// typed message).
const maxChatBodySize = 64 << 10

// ChatHandler exposes the conversation engine over REST.
type ChatHandler struct {
	mgr         *conversation.Manager
	rateLimiter *RateLimiter
}

// NewChatHandler creates a chat handler.
func NewChatHandler(mgr *conversation.Manager, rateLimiter *RateLimiter) *ChatHandler {
	return &ChatHandler{mgr: mgr, rateLimiter: rateLimiter}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/options", h.Options)
		r.Get("/history", h.History)
		r.Post("/message", h.Message)
		r.Post("/quick-option", h.QuickOption)
		r.Post("/reset", h.Reset)
	})
}

type chatMessageRequest struct {
	Message string `json:"message"`
}

type quickOptionRequest struct {
	ID string `json:"id"`
}

// Options returns the fixed quick-option menu.
func (h *ChatHandler) Options(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"options": conversation.QuickOptions})
}

// Message handles one typed visitor turn.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	slog.Info("Chat message",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(req.Message),
	)

	result, err := h.mgr.HandleMessage(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		slog.Error("Chat turn failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, result)
}

// QuickOption handles a quick-option selection.
func (h *ChatHandler) QuickOption(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
	var req quickOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		Error(w, http.StatusBadRequest, "id is required")
		return
	}

	result, err := h.mgr.HandleQuickOption(r.Context(), userID, sessionID, req.ID)
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownOption) {
			Error(w, http.StatusBadRequest, "unknown quick option")
			return
		}
		slog.Error("Quick option failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process quick option")
		return
	}

	JSON(w, http.StatusOK, result)
}

// History returns the ordered session transcript.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, err := h.mgr.History(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("History lookup failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// Reset discards the conversation session entirely.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.mgr.Reset(r.Context(), userID, sessionID); err != nil {
		slog.Error("Chat reset failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
