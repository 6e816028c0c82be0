package domain

import (
	"time"
)

// FormStep identifies the guided-form state the conversation is in.
// Steps advance strictly forward except the explicit edit transition,
// which jumps back to a chosen field.
type FormStep string

const (
	// StepName collects the visitor's name.
	StepName FormStep = "name"
	// StepEmail collects and validates the visitor's email.
	StepEmail FormStep = "email"
	// StepPhone collects an optional phone number ("skip" bypasses).
	StepPhone FormStep = "phone"
	// StepDetails collects free-text project notes.
	StepDetails FormStep = "details"
	// StepReviewConfirm shows the summary and awaits yes/edit.
	StepReviewConfirm FormStep = "review"
	// StepDone means the form finished and free-text mode resumed.
	StepDone FormStep = "done"
)

// ConversationState is the engine's mutable per-session state. It is
// created fresh per session and discarded entirely on reset.
type ConversationState struct {
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	Transcript []Message  `json:"transcript"`
	FormActive bool       `json:"form_active"`
	FormStep   FormStep   `json:"form_step"`
	Draft      LeadRecord `json:"draft"`
	// EditTarget is set only while the edit sub-dialogue is choosing a
	// field to revisit.
	EditTarget string `json:"edit_target,omitempty"`
	// EditReturn is true while a single field is being re-captured, so
	// completing that step returns to review instead of advancing.
	EditReturn bool `json:"edit_return,omitempty"`
	// NudgeSent guards the idle nudge to a single fire per session.
	NudgeSent bool      `json:"nudge_sent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Append adds a message to the transcript.
func (c *ConversationState) Append(m Message) {
	c.Transcript = append(c.Transcript, m)
	c.UpdatedAt = time.Now()
}

// LastAssistant returns the most recent assistant message, or nil.
func (c *ConversationState) LastAssistant() *Message {
	for i := len(c.Transcript) - 1; i >= 0; i-- {
		if c.Transcript[i].Role == RoleAssistant {
			return &c.Transcript[i]
		}
	}
	return nil
}

// PublicTranscript returns the transcript with internal bookkeeping
// messages filtered out, in order.
func (c *ConversationState) PublicTranscript() []Message {
	out := make([]Message, 0, len(c.Transcript))
	for _, m := range c.Transcript {
		if m.Internal {
			continue
		}
		out = append(out, m)
	}
	return out
}
