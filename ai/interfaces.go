package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GraphExtractor extracts entities and the relations between them from text.
// Implementations must be thread-safe for concurrent use.
type GraphExtractor interface {
	// ExtractGraph analyzes text and returns the entities it mentions and the
	// directed relations between them. Relations reference entities by name;
	// a relation whose endpoint is not in Entities should be discarded by the
	// caller. Returns an empty graph if nothing is found.
	ExtractGraph(ctx context.Context, text string) (*ExtractedGraph, error)
}

// ExtractedGraph is the result of one extraction pass over a chunk of text.
type ExtractedGraph struct {
	Entities  []ExtractedEntity
	Relations []ExtractedRelation
}

// ExtractedEntity is a named entity identified in text.
type ExtractedEntity struct {
	// Name is the entity identifier in lowercase, 1-3 words, singular form.
	Name string

	// Type categorizes the entity (e.g. "drug", "condition", "organization").
	Type string
}

// ExtractedRelation is a directed edge between two extracted entities,
// referenced by name.
type ExtractedRelation struct {
	Source string
	Target string

	// Type must match one of RelationTypes.
	Type string
}

// StreamFunc receives one generated chunk of output text at a time.
// Returning an error stops generation.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NormalizeRole maps arbitrary caller-supplied role strings onto the three
// supported roles. Unrecognized roles default to user.
func NormalizeRole(s string) Role {
	switch Role(s) {
	case RoleSystem:
		return RoleSystem
	case RoleAssistant:
		return RoleAssistant
	case "ai", "model": // common aliases
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Message is a single turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// Generator produces chat completions, streaming tokens when the backing
// provider supports it. Implementations must be thread-safe.
type Generator interface {
	// SupportsStreaming reports whether GenerateStream delivers tokens
	// incrementally. It is a static capability of the provider, declared at
	// construction, not probed at call time.
	SupportsStreaming() bool

	// GenerateStream generates a completion for the conversation, invoking fn
	// for each chunk of output as it is produced. Callers must only use this
	// when SupportsStreaming reports true.
	GenerateStream(ctx context.Context, messages []Message, fn StreamFunc) error

	// Generate generates a completion synchronously and returns the full text.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder, GraphExtractor and
// Generator instances, ensuring they share configuration appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// GraphExtractor returns the entity/relation extraction service.
	// The returned GraphExtractor is safe for concurrent use.
	GraphExtractor() GraphExtractor

	// Generator returns the chat generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
