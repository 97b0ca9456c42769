// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/storage"
)

// InlineIngestor runs the whole ingestion inline for a single document:
// download, page count, convert, chunk and embed, batch by batch, emitting a
// checkpoint event after each phase. It exists for small interactive
// documents where queue latency is undesirable and shares no state with the
// queued pipeline.
//
// Cancellation is cooperative at chunk boundaries: when the consumer goes
// away the current chunk is finished first, so vector and graph records are
// never left half-written.
type InlineIngestor struct {
	fetcher   document.Fetcher
	converter document.Converter
	splitter  document.Splitter
	embedder  ai.Embedder
	extractor ai.GraphExtractor
	vectors   storage.VectorRepository
	graph     storage.GraphRepository
	throttle  *Throttle
	batchSize int
	logger    *slog.Logger
}

// NewInlineIngestor creates the inline ingestion path over the same
// collaborators the queued stages use.
func NewInlineIngestor(
	fetcher document.Fetcher,
	converter document.Converter,
	splitter document.Splitter,
	provider ai.Provider,
	vectors storage.VectorRepository,
	graph storage.GraphRepository,
	throttle *Throttle,
	batchSize int,
) (*InlineIngestor, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if converter == nil {
		return nil, ErrConverterRequired
	}
	if splitter == nil {
		return nil, ErrSplitterRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if vectors == nil || graph == nil {
		return nil, ErrRepositoryRequired
	}
	if throttle == nil {
		throttle = NewThrottle(DefaultExtractorRPM)
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &InlineIngestor{
		fetcher:   fetcher,
		converter: converter,
		splitter:  splitter,
		embedder:  provider.Embedder(),
		extractor: provider.GraphExtractor(),
		vectors:   vectors,
		graph:     graph,
		throttle:  throttle,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "inline-ingestor"),
	}, nil
}

// Run ingests the document described by metadata, emitting ordered
// checkpoints and exactly one terminal event ("completed" or "error").
// The returned error mirrors the terminal event. batchSize overrides the
// configured page batch size when positive.
func (in *InlineIngestor) Run(ctx context.Context, metadata core.FileMetadata, batchSize int, emitter Emitter) error {
	if err := emitter.Emit(ctx, Event{Status: "downloading", Message: "downloading " + metadata.FileURL}); err != nil {
		return err
	}

	data, err := in.fetcher.Fetch(ctx, metadata.FileURL)
	if err != nil {
		return in.fail(ctx, emitter, err)
	}

	totalPages, err := in.converter.PageCount(ctx, data)
	if err != nil {
		return in.fail(ctx, emitter, err)
	}
	if totalPages < 1 {
		return in.fail(ctx, emitter, fmt.Errorf("%w: %s", ErrNoPages, metadata.FileID))
	}

	if err := emitter.Emit(ctx, Event{
		Status:  "converting",
		Message: fmt.Sprintf("processing %d pages", totalPages),
		Fields:  map[string]any{"total_pages": totalPages},
	}); err != nil {
		return err
	}

	if batchSize < 1 {
		batchSize = in.batchSize
	}
	batches, err := core.PageBatches(totalPages, batchSize)
	if err != nil {
		return in.fail(ctx, emitter, err)
	}

	// The chunk in flight always completes even after the consumer
	// disconnects, keeping vector and graph writes paired.
	chunkCtx := context.WithoutCancel(ctx)

	totalChunks := 0
	for _, batch := range batches {
		pages, err := in.converter.Convert(ctx, data, batch)
		if err != nil {
			return in.fail(ctx, emitter, err)
		}

		chunks, err := in.splitter.Split(ctx, metadata, batch, pages)
		if err != nil {
			return in.fail(ctx, emitter, err)
		}

		for _, chunk := range chunks {
			// Cooperative stop between chunks, never mid-chunk.
			if err := ctx.Err(); err != nil {
				in.logger.Info("inline ingestion canceled",
					"file", metadata.FileID, "chunks", totalChunks)
				return err
			}
			if err := in.embedChunk(chunkCtx, chunk); err != nil {
				return in.fail(ctx, emitter, err)
			}
			totalChunks++
		}

		if err := emitter.Emit(ctx, Event{
			Status:  "embedding",
			Message: fmt.Sprintf("embedded pages %d-%d", batch.Start, batch.End-1),
			Fields:  map[string]any{"page_range": batch.String(), "chunks": len(chunks)},
		}); err != nil {
			return err
		}
	}

	return emitter.Emit(ctx, Event{
		Status:  "completed",
		Message: "ingestion complete",
		Fields:  map[string]any{"total_pages": totalPages, "total_chunks": totalChunks},
	})
}

// embedChunk writes one chunk into both stores. The graph half reuses the
// stage throttle so inline ingestion counts against the same rate ceiling.
func (in *InlineIngestor) embedChunk(ctx context.Context, chunk core.Chunk) error {
	vector, err := in.embedder.EmbedText(ctx, chunk.Text)
	if err != nil {
		return err
	}

	key := chunk.Key()
	record := &storage.VectorRecord{
		ID:         chunk.ID(),
		Key:        key,
		Text:       chunk.Text,
		Vector:     vector,
		FileID:     chunk.FileMetadata.FileID,
		FileName:   chunk.FileMetadata.FileName,
		FileURL:    chunk.FileMetadata.FileURL,
		PageRange:  chunk.PageRange.String(),
		ChunkIndex: chunk.Index,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := in.vectors.Upsert(ctx, record); err != nil {
		return err
	}

	if err := in.throttle.Wait(ctx); err != nil {
		return err
	}
	extracted, err := in.extractor.ExtractGraph(ctx, chunk.Text)
	if err != nil {
		return err
	}
	if len(extracted.Entities) == 0 {
		return nil
	}
	_, _, err = MergeExtractedGraph(ctx, in.graph, key, extracted)
	return err
}

// fail emits the terminal error event and returns the cause. An emit
// failure means the consumer is already gone; the cause still wins.
func (in *InlineIngestor) fail(ctx context.Context, emitter Emitter, cause error) error {
	if err := emitter.Emit(ctx, Event{Status: "error", Message: cause.Error()}); err != nil {
		in.logger.Debug("could not deliver error event", "err", err)
	}
	return cause
}
