package conversation

import (
	"fmt"

	"github.com/luminova-studio/siteline/internal/domain"
)

// Fixed engine texts. These are the product copy of the chat widget;
// the oracle never generates them.
const (
	promptName    = "Great — I can take a few details and have our team follow up personally. First, what's your name?"
	promptPhone   = "Got it. What's a good phone number? Type \"skip\" if you'd rather not share one."
	promptDetails = "Perfect. Tell me a bit about your project — what are you looking to build or improve?"

	emailInvalidReply = "Hmm, that doesn't look like a valid email address. Could you double-check it? Something like you@example.com."
	reviewInvalid     = "Just reply \"yes\" to send your inquiry to our team, or \"edit\" to change one of the details."
	editMenuPrompt    = "Which field would you like to change — name, email, phone, or details? You can also say \"submit as is\"."
	editMenuInvalid   = "I can update name, email, phone, or details — which one? Or say \"submit as is\" to send it along."

	confirmationReply = "Thank you! Your inquiry is on its way to our team — we'll get back to you within one business day."

	followUpReply = "That sounds like an interesting project! Would you like to discuss it with our team? I can take a few details right here in the chat."

	nudgeReply = "By the way — if you're weighing up a project, I can take a few details and get you personalized insights from our team. Just say the word!"

	quickFollowUp = "If you'd like, I can take a few details about your project and have our team prepare a personalized estimate."
)

func promptEmail(name string) string {
	return fmt.Sprintf("Thanks, %s! What's the best email to reach you at?", name)
}

func submitFailureReply(supportEmail string) string {
	return fmt.Sprintf("Something went wrong sending your inquiry. Please email us directly at %s and we'll take it from there.", supportEmail)
}

func oracleFallbackReply(supportEmail string) string {
	return fmt.Sprintf("I'm having trouble connecting right now. You can reach our team directly at %s.", supportEmail)
}

func reviewSummary(draft domain.LeadRecord) string {
	return fmt.Sprintf(
		"Here's what I have:\n- Name: %s\n- Email: %s\n- Phone: %s\n- Details: %s\n\nReply \"yes\" to send this to our team, or \"edit\" to change something.",
		draft.Name, draft.Email, draft.PhoneOrSentinel(), draft.ProjectNotes,
	)
}

func editFieldPrompt(field string) string {
	switch field {
	case fieldName:
		return "Sure — what name should I put down?"
	case fieldEmail:
		return "Sure — what's the correct email?"
	case fieldPhone:
		return "Sure — what's the right phone number? Type \"skip\" to leave it out."
	default:
		return "Sure — what should the project details say?"
	}
}

// quickReplies are the canned answers for the quick-option keyword
// classes. The default reply covers prompts no class matches.
var quickReplies = map[string]string{
	"business-website": "We build conversion-focused business websites — clean design, fast load times, and easy content editing. Most business sites go live within a few weeks.",
	"sell-online":      "We set up e-commerce stores with secure checkout, inventory management, and payment processing, tailored to what you sell and where your customers are.",
	"refresh":          "A refresh can work wonders. We modernize design, speed, and search visibility while keeping everything that already works for your visitors.",
	"marketing":        "Our marketing work covers SEO, content, and paid campaigns — always measured against real leads rather than vanity metrics.",
	"budget":           "Budgets vary with scope, but we size every project honestly — a simple site costs far less than a custom application, and we'll tell you which one you actually need.",
}

const quickReplyDefault = "Happy to help with that! Our team covers design, development, and marketing end to end, so there's very little we can't take on."
