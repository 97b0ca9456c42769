package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
// OpenAI-compatible backends support server-sent token streaming.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// SupportsStreaming reports true; OpenAI-compatible chat APIs stream tokens.
func (g *Generator) SupportsStreaming() bool {
	return true
}

// GenerateStream generates a completion, invoking fn for each token chunk as
// it arrives from the backend.
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

// toMessageContent converts chat messages to langchaingo message content.
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
