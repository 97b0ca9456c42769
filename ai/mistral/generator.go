package mistral

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"
)

// DefaultModel is used when no model is configured for generation.
const DefaultModel = "ministral-3b-latest"

// Generator implements ai.Generator using the Mistral chat API.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

// NewGenerator creates a generator backed by the Mistral API. The API key is
// required; model falls back to DefaultModel when empty.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(apiKey, model string) (ai.Generator, error) {
	if apiKey == "" {
		return nil, errors.New("mistral: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := mistral.New(
		mistral.WithAPIKey(apiKey),
		mistral.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "mistral-generator"),
	}, nil
}

// SupportsStreaming reports true; the Mistral chat API streams tokens.
func (g *Generator) SupportsStreaming() bool {
	return true
}

// GenerateStream generates a completion, invoking fn for each token chunk as
// it arrives.
func (g *Generator) GenerateStream(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) error {
	content := toMessageContent(messages)

	g.logger.Debug("streaming completion", "messages", len(messages))

	_, err := g.client.GenerateContent(ctx, content,
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return fn(ctx, chunk)
		}))
	if err != nil {
		g.logger.Error("streaming generation failed", "err", err)
		return err
	}
	return nil
}

// Generate generates a completion synchronously and returns the full text.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	content := toMessageContent(messages)

	g.logger.Debug("generating completion", "messages", len(messages))

	response, err := g.client.GenerateContent(ctx, content)
	if err != nil {
		g.logger.Error("generation failed", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", errors.New("no choices returned from model")
	}
	return response.Choices[0].Content, nil
}

func toMessageContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content
}
