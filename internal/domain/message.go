package domain

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks a visitor-authored message.
	RoleUser Role = "user"
	// RoleAssistant marks an engine-authored message.
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation transcript. Messages are
// immutable once appended; transcript order is message order.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Internal marks bookkeeping turns (edit-menu prompts, validation
	// re-prompts) that are shown in the widget but filtered out of the
	// transcript handed to the outbound submitter.
	Internal bool `json:"internal,omitempty"`
}

// NewUserMessage creates a visitor message stamped now.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message stamped now.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}
