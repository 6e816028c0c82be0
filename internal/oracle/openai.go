package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/luminova-studio/siteline/internal/config"
	"github.com/luminova-studio/siteline/internal/domain"
)

var errEmptyCompletion = errors.New("completion returned no usable text")

// OpenAIOracle implements Oracle against the OpenAI chat-completions
// API. One instance is shared by every session, so the client is built
// once at construction rather than on first use.
type OpenAIOracle struct {
	cfg    config.OracleConfig
	client *openai.Client
}

// NewOpenAIOracle creates an oracle backed by the OpenAI API. Without
// an API key the oracle is inert and Complete returns an error.
func NewOpenAIOracle(cfg config.OracleConfig) *OpenAIOracle {
	o := &OpenAIOracle{cfg: cfg}
	if cfg.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		o.client = &client
	}
	return o
}

// IsConfigured returns true if an API key is present.
func (o *OpenAIOracle) IsConfigured() bool {
	return o.client != nil
}

// Complete sends the transcript plus the fixed instruction block and
// returns the completion text verbatim.
func (o *OpenAIOracle) Complete(ctx context.Context, transcript []domain.Message) (string, error) {
	if o.client == nil {
		return "", fmt.Errorf("oracle API key not configured")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	messages = append(messages, openai.SystemMessage(SystemInstructions))
	for _, m := range transcript {
		if m.Internal {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.cfg.Model),
		Messages:    messages,
		Temperature: openai.Float(o.cfg.Temperature),
		MaxTokens:   openai.Int(int64(o.cfg.MaxTokens)),
	}

	reqCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	completion, err := o.client.Chat.Completions.New(reqCtx, params)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errEmptyCompletion
	}

	text := completion.Choices[0].Message.Content
	slog.Debug("Oracle completion received", "model", o.cfg.Model, "content_length", len(text))
	return text, nil
}
