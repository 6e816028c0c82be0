package domain

import (
	"regexp"
	"strings"
	"time"
)

// PhoneNotProvided is the sentinel stored when the visitor skips the
// phone step.
const PhoneNotProvided = "Not provided"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// LeadRecord is the structured output of the guided inquiry form.
type LeadRecord struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ProjectNotes string `json:"project_notes"`
	RequestType  string `json:"request_type"`
}

// Submittable reports whether the record is eligible for submission:
// name non-empty after trim and email valid. Phone and notes may be
// empty.
func (l *LeadRecord) Submittable() bool {
	return strings.TrimSpace(l.Name) != "" && ValidEmail(l.Email)
}

// PhoneOrSentinel returns the captured phone or the skip sentinel.
func (l *LeadRecord) PhoneOrSentinel() string {
	if strings.TrimSpace(l.Phone) == "" {
		return PhoneNotProvided
	}
	return l.Phone
}

// LeadSubmission is the durable local copy of a submitted lead. The
// relay is fire-and-forget, so this is the record of truth when mail
// gets dropped.
type LeadSubmission struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Lead        LeadRecord `json:"lead"`
	Transcript  string     `json:"transcript"`
	RelayOK     bool       `json:"relay_ok"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// AppendNotes accumulates free-text detail onto ProjectNotes.
func (l *LeadRecord) AppendNotes(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if l.ProjectNotes == "" {
		l.ProjectNotes = text
		return
	}
	l.ProjectNotes += "\n" + text
}
