package reembed

import "errors"

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrExtractorRequired is returned when no graph extractor is provided.
	ErrExtractorRequired = errors.New("graph extractor is required")

	// ErrRepositoryRequired is returned when no vector repository is provided.
	ErrRepositoryRequired = errors.New("vector repository is required")
)
