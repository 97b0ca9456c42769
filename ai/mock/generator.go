package mock

import (
	"context"
	"strings"

	"github.com/poiesic/docpipe/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields and lets tests
// control the declared streaming capability, which drives the caller's
// choice between token streaming and synchronous re-chunked delivery.
type MockGenerator struct {
	// Streaming is the value reported by SupportsStreaming.
	Streaming bool

	// GenerateFunc is called by Generate if set.
	// If nil, echoes the last user message.
	GenerateFunc func(ctx context.Context, messages []ai.Message) (string, error)

	// GenerateStreamFunc is called by GenerateStream if set.
	// If nil, the default response is delivered word by word.
	GenerateStreamFunc func(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) error

	callCount int
}

// NewMockGenerator creates a mock generator that reports streaming support.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Streaming: true}
}

// NewMockSyncGenerator creates a mock generator that does not stream.
// Callers are expected to fall back to Generate.
func NewMockSyncGenerator() *MockGenerator {
	return &MockGenerator{Streaming: false}
}

// SupportsStreaming reports the configured streaming capability.
func (m *MockGenerator) SupportsStreaming() bool {
	return m.Streaming
}

// Generate returns the default echo response or the injected behavior.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	m.callCount++

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	return defaultResponse(messages), nil
}

// GenerateStream delivers the default response word by word, or runs the
// injected behavior.
func (m *MockGenerator) GenerateStream(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) error {
	m.callCount++

	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, messages, fn)
	}

	response := defaultResponse(messages)
	words := strings.Fields(response)
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		if err := fn(ctx, []byte(word)); err != nil {
			return err
		}
	}
	return nil
}

// CallCount returns the number of times Generate or GenerateStream was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateFunc = nil
	m.GenerateStreamFunc = nil
}

// defaultResponse echoes the last user message so tests can correlate
// output with input.
func defaultResponse(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return "mock answer: " + messages[i].Content
		}
	}
	return "mock answer"
}
