package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/identity"
	"github.com/luminova-studio/siteline/internal/submit"
)

// ScheduleHandler forwards scheduling-widget callbacks into the
// outbound submission path. The page extracts the event-time/invitee
// payload from the widget's postMessage event and posts it here.
type ScheduleHandler struct {
	submitter submit.Submitter
}

// NewScheduleHandler creates a scheduling-callback handler.
func NewScheduleHandler(submitter submit.Submitter) *ScheduleHandler {
	return &ScheduleHandler{submitter: submitter}
}

// RegisterRoutes registers scheduling routes.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/schedule/scheduled", h.Scheduled)
}

type scheduledRequest struct {
	EventStart   string `json:"event_start"`
	InviteeEmail string `json:"invitee_email"`
}

// Scheduled records a booked meeting as a lead. Submission is
// fire-and-forget like the chat path; the widget already confirmed the
// booking to the visitor.
func (h *ScheduleHandler) Scheduled(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req scheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidEmail(req.InviteeEmail) {
		Error(w, http.StatusBadRequest, "invitee_email is invalid")
		return
	}
	if req.EventStart == "" {
		Error(w, http.StatusBadRequest, "event_start is required")
		return
	}

	name := req.InviteeEmail
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}

	lead := domain.LeadRecord{
		Name:         name,
		Email:        req.InviteeEmail,
		ProjectNotes: "Meeting booked for " + req.EventStart,
		RequestType:  "Meeting scheduled",
	}

	if err := h.submitter.Send(r.Context(), userID, lead, nil); err != nil {
		slog.Error("Scheduled-meeting submission failed", "user_id", userID, "error", err)
		Error(w, http.StatusBadGateway, "failed to forward booking")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "forwarded"})
}
