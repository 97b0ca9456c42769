package mock

import (
	"context"
	"strings"

	"github.com/poiesic/docpipe/ai"
)

// MockGraphExtractor is a test double for ai.GraphExtractor.
// It allows custom behavior injection via function fields.
type MockGraphExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, uses default simple word extraction.
	ExtractGraphFunc func(ctx context.Context, text string) (*ai.ExtractedGraph, error)

	callCount int
}

// NewMockGraphExtractor creates a mock graph extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockGraphExtractor() *MockGraphExtractor {
	return &MockGraphExtractor{}
}

// ExtractGraph extracts simple entities from the text by default.
// Words longer than 4 characters become entities; consecutive entities are
// linked with a related_to relation. This gives tests predictable, non-empty
// graphs for any realistic input text.
func (m *MockGraphExtractor) ExtractGraph(ctx context.Context, text string) (*ai.ExtractedGraph, error) {
	m.callCount++

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text)
	}

	graph := &ai.ExtractedGraph{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if len(word) <= 4 || seen[word] {
			continue
		}
		seen[word] = true
		graph.Entities = append(graph.Entities, ai.ExtractedEntity{
			Name: word,
			Type: "other",
		})
		if n := len(graph.Entities); n > 1 {
			graph.Relations = append(graph.Relations, ai.ExtractedRelation{
				Source: graph.Entities[n-2].Name,
				Target: graph.Entities[n-1].Name,
				Type:   "related_to",
			})
		}
		if len(graph.Entities) >= 5 {
			break
		}
	}
	return graph, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *MockGraphExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom behavior.
func (m *MockGraphExtractor) Reset() {
	m.callCount = 0
	m.ExtractGraphFunc = nil
}
