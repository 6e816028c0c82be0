// Package conversation implements the chat widget's hybrid
// free-text/guided-form dialogue engine.
package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/oracle"
	"github.com/luminova-studio/siteline/internal/submit"
)

// Field selectors accepted by the edit sub-dialogue.
const (
	fieldName    = "name"
	fieldEmail   = "email"
	fieldPhone   = "phone"
	fieldDetails = "details"

	// editChoosing marks the edit sub-dialogue while it waits for the
	// visitor to pick a field.
	editChoosing = "choosing"

	// requestTypeInquiry seeds the lead classification for form starts
	// triggered from chat.
	requestTypeInquiry = "New inquiry"
)

// Engine drives one conversation turn at a time. It owns no storage and
// no timers; the manager layers those on. All mutations go through the
// named transitions below, never ad hoc field assignment.
type Engine struct {
	oracle       oracle.Oracle
	submitter    submit.Submitter
	supportEmail string
}

// NewEngine creates a conversation engine.
func NewEngine(o oracle.Oracle, s submit.Submitter, supportEmail string) *Engine {
	return &Engine{oracle: o, submitter: s, supportEmail: supportEmail}
}

// say appends a regular assistant message and returns it.
func say(state *domain.ConversationState, content string) domain.Message {
	m := domain.NewAssistantMessage(content)
	state.Append(m)
	return m
}

// sayInternal appends a bookkeeping assistant message (re-prompts, edit
// menus) that is filtered out of submitted transcripts.
func sayInternal(state *domain.ConversationState, content string) domain.Message {
	m := domain.NewAssistantMessage(content)
	m.Internal = true
	state.Append(m)
	return m
}

// HandleMessage processes one visitor turn: the text is appended to the
// transcript, routed through the form state machine or the intent
// rules, and the assistant messages produced by the turn are returned.
// Failures surface as plain-language chat messages, never as errors.
func (e *Engine) HandleMessage(ctx context.Context, state *domain.ConversationState, text string) []domain.Message {
	state.Append(domain.NewUserMessage(text))

	if state.FormActive {
		return e.handleFormInput(ctx, state, text)
	}

	// Ordered intent rules: structured-form triggers run before the
	// generic oracle fallback.
	if detectsProjectIntent(text) {
		return []domain.Message{e.startForm(state)}
	}

	return e.handleFreeText(ctx, state, text)
}

// HandleQuickOption processes a quick-option selection, which behaves
// exactly as if the visitor typed the canned prompt text. While the
// guided form is active the prompt is captured by the current field,
// the same as typed input.
func (e *Engine) HandleQuickOption(ctx context.Context, state *domain.ConversationState, opt QuickOption) []domain.Message {
	state.Append(domain.NewUserMessage(opt.Prompt))

	if state.FormActive {
		return e.handleFormInput(ctx, state, opt.Prompt)
	}

	replyText := quickReplyDefault
	if class := classifyQuickPrompt(opt.Prompt); class != "" {
		replyText = quickReplies[class]
	}

	// The follow-up invitation is a second message; the widget renders
	// it after a short delay client-side.
	return []domain.Message{
		say(state, replyText),
		say(state, quickFollowUp),
	}
}

// startForm opens the guided form at the Name step.
func (e *Engine) startForm(state *domain.ConversationState) domain.Message {
	state.FormActive = true
	state.FormStep = domain.StepName
	state.EditTarget = ""
	state.EditReturn = false
	state.Draft.RequestType = requestTypeInquiry
	return say(state, promptName)
}

func (e *Engine) handleFormInput(ctx context.Context, state *domain.ConversationState, text string) []domain.Message {
	switch state.FormStep {
	case domain.StepName:
		return e.captureName(state, text)
	case domain.StepEmail:
		return e.captureEmail(state, text)
	case domain.StepPhone:
		return e.capturePhone(state, text)
	case domain.StepDetails:
		return e.captureDetails(state, text)
	case domain.StepReviewConfirm:
		return e.handleReview(ctx, state, text)
	default:
		// Done with the form; fall back to free-text handling.
		state.FormActive = false
		return e.handleFreeText(ctx, state, text)
	}
}

// captureName accepts any non-empty input verbatim.
func (e *Engine) captureName(state *domain.ConversationState, text string) []domain.Message {
	name := strings.TrimSpace(text)
	if name == "" {
		return []domain.Message{sayInternal(state, "I didn't catch that — what's your name?")}
	}
	state.Draft.Name = name

	if state.EditReturn {
		return e.returnToReview(state)
	}
	state.FormStep = domain.StepEmail
	return []domain.Message{say(state, promptEmail(name))}
}

// captureEmail validates and either advances or re-prompts in place.
func (e *Engine) captureEmail(state *domain.ConversationState, text string) []domain.Message {
	email := strings.TrimSpace(text)
	if !domain.ValidEmail(email) {
		return []domain.Message{sayInternal(state, emailInvalidReply)}
	}
	state.Draft.Email = email

	if state.EditReturn {
		return e.returnToReview(state)
	}
	state.FormStep = domain.StepPhone
	return []domain.Message{say(state, promptPhone)}
}

// capturePhone stores input verbatim; the literal "skip" (any case)
// leaves the phone empty.
func (e *Engine) capturePhone(state *domain.ConversationState, text string) []domain.Message {
	input := strings.TrimSpace(text)
	if strings.EqualFold(input, "skip") {
		state.Draft.Phone = ""
	} else if input != "" {
		state.Draft.Phone = input
	}

	if state.EditReturn {
		return e.returnToReview(state)
	}
	state.FormStep = domain.StepDetails
	return []domain.Message{say(state, promptDetails)}
}

// captureDetails appends free text onto the accumulated project notes.
func (e *Engine) captureDetails(state *domain.ConversationState, text string) []domain.Message {
	state.Draft.AppendNotes(text)

	if state.EditReturn {
		return e.returnToReview(state)
	}
	state.FormStep = domain.StepReviewConfirm
	return []domain.Message{say(state, reviewSummary(state.Draft))}
}

// returnToReview closes an edit sub-dialogue, re-rendering the summary
// with all other captured fields untouched.
func (e *Engine) returnToReview(state *domain.ConversationState) []domain.Message {
	state.EditReturn = false
	state.EditTarget = ""
	state.FormStep = domain.StepReviewConfirm
	return []domain.Message{say(state, reviewSummary(state.Draft))}
}

func (e *Engine) handleReview(ctx context.Context, state *domain.ConversationState, text string) []domain.Message {
	input := strings.ToLower(strings.TrimSpace(text))

	if state.EditTarget == editChoosing {
		switch input {
		case fieldName, fieldEmail, fieldPhone, fieldDetails:
			state.EditTarget = input
			state.EditReturn = true
			state.FormStep = stepForField(input)
			return []domain.Message{say(state, editFieldPrompt(input))}
		case "submit as is":
			state.EditTarget = ""
			return e.submitLead(ctx, state)
		default:
			return []domain.Message{sayInternal(state, editMenuInvalid)}
		}
	}

	switch input {
	case "yes":
		// Name and email were validated at capture; review is
		// unreachable with an unsubmittable draft by construction.
		return e.submitLead(ctx, state)
	case "edit":
		state.EditTarget = editChoosing
		return []domain.Message{sayInternal(state, editMenuPrompt)}
	default:
		return []domain.Message{sayInternal(state, reviewInvalid)}
	}
}

func stepForField(field string) domain.FormStep {
	switch field {
	case fieldName:
		return domain.StepName
	case fieldEmail:
		return domain.StepEmail
	case fieldPhone:
		return domain.StepPhone
	default:
		return domain.StepDetails
	}
}

// submitLead hands the draft to the outbound sink and closes the form.
// Confirmation is optimistic; only a synchronous submitter failure
// swaps it for the fallback message.
func (e *Engine) submitLead(ctx context.Context, state *domain.ConversationState) []domain.Message {
	state.FormStep = domain.StepDone
	state.FormActive = false

	err := e.submitter.Send(ctx, state.UserID, state.Draft, state.PublicTranscript())
	if err != nil {
		slog.Error("Lead submission failed", "user_id", state.UserID, "error", err)
		return []domain.Message{say(state, submitFailureReply(e.supportEmail))}
	}
	return []domain.Message{say(state, confirmationReply)}
}

// handleFreeText forwards the transcript to the oracle and applies the
// follow-up heuristic. Oracle failure yields the fixed fallback message
// and never corrupts the transcript.
func (e *Engine) handleFreeText(ctx context.Context, state *domain.ConversationState, text string) []domain.Message {
	reply, err := e.oracle.Complete(ctx, state.Transcript)
	if err != nil {
		slog.Warn("Oracle completion failed", "user_id", state.UserID, "error", err)
		return []domain.Message{say(state, oracleFallbackReply(e.supportEmail))}
	}

	out := []domain.Message{say(state, reply)}
	if wantsFollowUp(text, reply) {
		out = append(out, say(state, followUpReply))
	}
	return out
}

// NudgeEligible reports whether the idle nudge may fire for the current
// state: enough conversation happened, no form in flight, the nudge has
// not fired before, and the last assistant message did not already
// pitch an inquiry.
func NudgeEligible(state *domain.ConversationState) bool {
	if state == nil || state.FormActive || state.NudgeSent {
		return false
	}
	if len(state.Transcript) <= 3 {
		return false
	}
	last := state.LastAssistant()
	if last != nil && assistantAlreadyPitched(last.Content) {
		return false
	}
	return true
}

// Nudge appends the single idle-nudge message and sets the guard.
func Nudge(state *domain.ConversationState) domain.Message {
	state.NudgeSent = true
	return say(state, nudgeReply)
}
