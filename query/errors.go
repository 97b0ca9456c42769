package query

import "errors"

var (
	// ErrEmptyQuestion indicates a request without query text.
	ErrEmptyQuestion = errors.New("query text is required")

	// ErrNoGenerator indicates no generator is registered for the
	// requested provider kind.
	ErrNoGenerator = errors.New("no generator for provider")

	// ErrEmbedderRequired and friends guard the orchestrator constructor.
	ErrEmbedderRequired = errors.New("embedder is required")
	ErrVectorsRequired  = errors.New("vector repository is required")
)
