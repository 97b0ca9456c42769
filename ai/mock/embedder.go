package mock

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// EmbeddingDim is the dimensionality of vectors produced by the default
// mock behavior.
const EmbeddingDim = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields. The default
// behavior derives a unit vector from the text alone, so equal inputs
// always embed identically and cosine comparisons stay meaningful.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	callCount int
}

// NewMockEmbedder creates a mock embedder with the default deterministic
// behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedText embeds a single text, deterministically unless overridden.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount++
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return textVector(text), nil
}

// EmbedTexts embeds a batch of texts, deterministically unless overridden.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount++
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = textVector(text)
	}
	return vectors, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// textVector builds the default embedding: a PRNG seeded from the text's
// hash fills the vector, which is then scaled to unit length.
func textVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vector := make([]float32, EmbeddingDim)
	var sumSquares float64
	for i := range vector {
		v := rng.Float64()*2 - 1
		vector[i] = float32(v)
		sumSquares += v * v
	}

	if norm := math.Sqrt(sumSquares); norm > 0 {
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
	}
	return vector
}
