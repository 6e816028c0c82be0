// Package submit delivers captured leads to the email-relay sink and
// keeps a durable local copy.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luminova-studio/siteline/internal/config"
	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/store"
)

// Submitter hands a validated lead plus its transcript to the outbound
// sink. Delivery is fire-and-forget: callers render confirmation
// optimistically and only react to synchronous failure.
type Submitter interface {
	Send(ctx context.Context, userID string, lead domain.LeadRecord, transcript []domain.Message) error
}

// relayPayload is the field contract of the email-relay endpoint.
type relayPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ProjectNotes string `json:"projectNotes"`
	RequestType  string `json:"requestType"`
	Transcript   string `json:"transcript"`
	Subject      string `json:"_subject"`
	Template     string `json:"_template"`
	Captcha      string `json:"_captcha"`
	Next         string `json:"_next,omitempty"`
}

// Service posts leads to the relay endpoint and records them locally.
type Service struct {
	cfg    config.RelayConfig
	repo   store.Repository
	client *http.Client
}

// NewService creates a submitter against the configured relay endpoint.
func NewService(cfg config.RelayConfig, repo store.Repository) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		cfg:    cfg,
		repo:   repo,
		client: &http.Client{Timeout: timeout},
	}
}

// RenderTranscript serializes a transcript for the relay email, one
// "timestamp role: content" line per turn. Internal bookkeeping
// messages are filtered out before rendering.
func RenderTranscript(transcript []domain.Message) string {
	var b strings.Builder
	for _, m := range transcript {
		if m.Internal {
			continue
		}
		fmt.Fprintf(&b, "%s %s: %s\n", m.Timestamp.Format(time.RFC3339), m.Role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Send posts the lead to the relay and records it in the local leads
// table. The relay response body is never consumed; a non-2xx status is
// logged but still counts as delivered from the engine's perspective.
// The local record is written regardless of relay outcome.
func (s *Service) Send(ctx context.Context, userID string, lead domain.LeadRecord, transcript []domain.Message) error {
	rendered := RenderTranscript(transcript)

	relayErr := s.postRelay(ctx, lead, rendered)
	if relayErr != nil {
		slog.Error("Lead relay submission failed", "user_id", userID, "error", relayErr)
	}

	record := &domain.LeadSubmission{
		ID:          uuid.NewString(),
		UserID:      userID,
		Lead:        lead,
		Transcript:  rendered,
		RelayOK:     relayErr == nil,
		SubmittedAt: time.Now(),
	}
	if err := s.repo.InsertLead(ctx, record); err != nil {
		slog.Error("Failed to record lead locally", "user_id", userID, "error", err)
		if relayErr != nil {
			// Neither the relay nor the local copy took the lead.
			return fmt.Errorf("lead lost: relay: %v: store: %w", relayErr, err)
		}
	}

	return relayErr
}

func (s *Service) postRelay(ctx context.Context, lead domain.LeadRecord, rendered string) error {
	if s.cfg.EndpointURL == "" {
		return fmt.Errorf("relay endpoint not configured")
	}

	payload := relayPayload{
		Name:         lead.Name,
		Email:        lead.Email,
		Phone:        lead.PhoneOrSentinel(),
		ProjectNotes: lead.ProjectNotes,
		RequestType:  lead.RequestType,
		Transcript:   rendered,
		Subject:      s.cfg.Subject,
		Template:     "table",
		Captcha:      "false",
		Next:         s.cfg.RedirectURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post relay: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close relay response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The sink is fire-and-forget; surface the status for the logs
		// only, no retry.
		slog.Warn("Relay returned non-2xx status", "status", resp.StatusCode)
	}
	return nil
}
