package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luminova-studio/siteline/internal/game"
	"github.com/luminova-studio/siteline/internal/identity"
)

// GameHandler exposes the matching-game engine.
type GameHandler struct {
	mgr *game.Manager
}

// NewGameHandler creates a game handler.
func NewGameHandler(mgr *game.Manager) *GameHandler {
	return &GameHandler{mgr: mgr}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/game", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/flip", h.Flip)
		r.Get("/state", h.State)
		r.Get("/best", h.Best)
	})
}

type flipRequest struct {
	SessionID string `json:"session_id"`
	CardID    *int   `json:"card_id"`
}

// Start deals a fresh board, replacing any active session. Restart and
// "play again" hit the same endpoint.
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snapshot, best, err := h.mgr.Start(r.Context(), userID)
	if err != nil {
		slog.Error("Game start failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to start game")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snapshot,
		"best":     best,
	})
}

// Flip applies one card flip to the active session.
func (h *GameHandler) Flip(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req flipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CardID == nil {
		Error(w, http.StatusBadRequest, "card_id is required")
		return
	}

	outcome, err := h.mgr.Flip(r.Context(), userID, req.SessionID, *req.CardID)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrNoSession):
			Error(w, http.StatusConflict, "no active game session")
		case errors.Is(err, game.ErrSessionMismatch):
			Error(w, http.StatusConflict, "game session id mismatch")
		default:
			slog.Error("Game flip failed", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to flip card")
		}
		return
	}

	JSON(w, http.StatusOK, outcome)
}

// State returns the current board snapshot.
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snapshot, err := h.mgr.Snapshot(userID)
	if err != nil {
		if errors.Is(err, game.ErrNoSession) {
			Error(w, http.StatusNotFound, "no active game session")
			return
		}
		Error(w, http.StatusInternalServerError, "failed to load game state")
		return
	}

	JSON(w, http.StatusOK, snapshot)
}

// Best returns the persisted best record for the user.
func (h *GameHandler) Best(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	best, err := h.mgr.Best(r.Context(), userID)
	if err != nil {
		slog.Error("Best record lookup failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load best record")
		return
	}

	JSON(w, http.StatusOK, best)
}
