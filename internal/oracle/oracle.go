// Package oracle provides the hosted completion API used for open-ended
// chat replies.
package oracle

import (
	"context"

	"github.com/luminova-studio/siteline/internal/domain"
)

// Oracle is a best-effort text-completion collaborator. Replies are
// non-deterministic and used verbatim; the caller owns all fallback
// behavior on error.
type Oracle interface {
	// Complete returns the next assistant reply for the given
	// transcript, or an error if the completion API is unreachable or
	// returns nothing usable.
	Complete(ctx context.Context, transcript []domain.Message) (string, error)
}

// SystemInstructions is the fixed instruction block prepended to every
// completion request. The length and tone rules are asked for, not
// enforced locally.
const SystemInstructions = `You are the website assistant for Luminova Studio, a small technology consultancy.

Company facts:
- Services: custom websites, e-commerce stores, web and mobile applications, site refreshes, and digital marketing.
- Work starts with a free consultation call; budgets are scoped per project.
- Based remotely; clients book calls through the scheduling page.

Tone rules:
- Friendly, plain language, no jargon, no pressure.
- Keep every reply between 2 and 4 sentences.
- When a visitor sounds ready to start a project, suggest the formal inquiry form or a consultation call.
- Never invent prices, deadlines, or client names.`
