package conversation

import (
	"strings"
)

// QuickOption is one entry of the fixed quick-option menu. Selecting it
// is behaviorally identical to the visitor typing the prompt text.
type QuickOption struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// QuickOptions is the fixed menu shown by the widget.
var QuickOptions = []QuickOption{
	{ID: "business-website", Label: "Website for my business", Prompt: "I need a website for my business"},
	{ID: "sell-online", Label: "Sell products online", Prompt: "I want to sell products online"},
	{ID: "refresh", Label: "Refresh my current site", Prompt: "My current site needs a refresh"},
	{ID: "marketing", Label: "Digital marketing help", Prompt: "I need help with digital marketing"},
	{ID: "budget", Label: "What does it cost?", Prompt: "What does an affordable website cost?"},
}

// FindQuickOption looks up a menu entry by id.
func FindQuickOption(id string) *QuickOption {
	for i := range QuickOptions {
		if QuickOptions[i].ID == id {
			return &QuickOptions[i]
		}
	}
	return nil
}

// classifyQuickPrompt maps a canned (or typed) prompt onto one of the
// quick reply classes via a small fixed keyword table.
func classifyQuickPrompt(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "business") && strings.Contains(t, "website"):
		return "business-website"
	case strings.Contains(t, "sell") && strings.Contains(t, "online"):
		return "sell-online"
	case strings.Contains(t, "refresh") || strings.Contains(t, "updating"):
		return "refresh"
	case strings.Contains(t, "marketing"):
		return "marketing"
	case strings.Contains(t, "budget") || strings.Contains(t, "affordable"):
		return "budget"
	default:
		return ""
	}
}

// projectIntentKeywords routes a free-text message straight into the
// guided form, skipping the oracle. Checked as case-insensitive
// substrings in order.
var projectIntentKeywords = []string{
	"quote",
	"estimate",
	"proposal",
	"hire",
	"consultation",
	"get started",
	"budget",
	"pricing",
	"how much",
	"contact",
}

// startQuestionPatterns catch "how do I start / pricing" style
// questions that signal buying intent without a keyword.
var startQuestionPatterns = []string{
	"how do i start",
	"how do we start",
	"where do i start",
	"what does a website cost",
	"what does it cost",
}

// detectsProjectIntent reports whether the message should short-circuit
// into the guided form. Form triggers are evaluated before any oracle
// fallback; rule order is fixed.
func detectsProjectIntent(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range projectIntentKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	for _, p := range startQuestionPatterns {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// projectTopicKeywords feed the post-oracle follow-up heuristic.
var projectTopicKeywords = []string{
	"project", "website", "app", "design", "development",
}

// oracleDiscussKeywords suppress the follow-up when the oracle reply
// already steered toward a conversation with the team.
var oracleDiscussKeywords = []string{
	"discuss", "team",
}

// wantsFollowUp reports whether the engine should append a follow-up
// invitation after an oracle reply.
func wantsFollowUp(userText, oracleReply string) bool {
	u := strings.ToLower(userText)
	mentioned := false
	for _, kw := range projectTopicKeywords {
		if strings.Contains(u, kw) {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return false
	}
	r := strings.ToLower(oracleReply)
	for _, kw := range oracleDiscussKeywords {
		if strings.Contains(r, kw) {
			return false
		}
	}
	return true
}

// nudgeSuppressKeywords block the idle nudge when the last assistant
// message already pitched an inquiry.
var nudgeSuppressKeywords = []string{
	"project", "personalized", "insights", "discuss",
}

func assistantAlreadyPitched(content string) bool {
	c := strings.ToLower(content)
	for _, kw := range nudgeSuppressKeywords {
		if strings.Contains(c, kw) {
			return true
		}
	}
	return false
}
