package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// VectorStage embeds one chunk and upserts it into the vector index under
// its deterministic id, so repeated delivery overwrites rather than
// duplicates.
type VectorStage struct {
	embedder ai.Embedder
	vectors  storage.VectorRepository
	logger   *slog.Logger
}

// NewVectorStage creates the vector-embed stage.
func NewVectorStage(embedder ai.Embedder, vectors storage.VectorRepository) (*VectorStage, error) {
	if embedder == nil {
		return nil, ErrProviderRequired
	}
	if vectors == nil {
		return nil, ErrRepositoryRequired
	}
	return &VectorStage{
		embedder: embedder,
		vectors:  vectors,
		logger:   slog.Default().With("component", "vector-stage"),
	}, nil
}

// Execute embeds the job's chunk text and upserts the record. No fan-out.
func (s *VectorStage) Execute(ctx context.Context, job *core.Job) ([]Fanout, error) {
	vector, err := s.embedder.EmbedText(ctx, job.ChunkText)
	if err != nil {
		return nil, err
	}

	key := core.ChunkKey(job.FileID, *job.PageRange, *job.ChunkIndex)
	now := time.Now().UTC()
	record := &storage.VectorRecord{
		ID:         core.IDFromContent(key),
		Key:        key,
		Text:       job.ChunkText,
		Vector:     vector,
		FileID:     job.FileID,
		FileName:   job.FileMetadata.FileName,
		FileURL:    job.FileMetadata.FileURL,
		PageRange:  job.PageRange.String(),
		ChunkIndex: *job.ChunkIndex,
		UpdatedAt:  now,
	}

	if err := s.vectors.Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Debug("chunk embedded", "job", job.ID, "key", key, "dims", len(vector))
	return nil, nil
}
