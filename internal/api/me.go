package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luminova-studio/siteline/internal/identity"
	"github.com/luminova-studio/siteline/internal/store"
)

// MeHandler exposes the anonymous visitor identity to the frontend.
type MeHandler struct {
	repo store.Repository
}

// NewMeHandler creates a new identity handler.
func NewMeHandler(repo store.Repository) *MeHandler {
	return &MeHandler{repo: repo}
}

// RegisterRoutes registers identity routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
}

// GetMe returns the visitor record for the current anonymous cookie.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
	})
}
