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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/storage"
)

// Config holds configuration for reprocessing runs.
type Config struct {
	// BatchSize is the number of records per embedding call.
	BatchSize int

	// ReportInterval is how often to report progress (number of records).
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed AI calls.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder regenerates the embedding of every stored vector record,
// typically after switching embedding models. Record identity is preserved:
// the chunk key and content-addressed ID never change, only the vector.
type Reembedder struct {
	vectors  storage.VectorRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	iterator *RecordIterator
}

// NewReembedder creates a reembedder. progress is where progress output is
// written, typically os.Stderr.
func NewReembedder(vectors storage.VectorRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if vectors == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		vectors:  vectors,
		embedder: embedder,
		config:   config,
		progress: progress,
		iterator: NewRecordIterator(vectors, config.BatchSize),
	}, nil
}

// Run reembeds every stored record, reporting progress along the way.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.vectors.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in index (0 records)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(records []*storage.VectorRecord) error {
		if err := r.processBatch(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())
	return nil
}

// processBatch embeds the batch's chunk texts and writes the records back.
func (r *Reembedder) processBatch(ctx context.Context, records []*storage.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := document.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i, record := range records {
		record.Vector = embeddings[i]
		if err := r.vectors.Upsert(ctx, record); err != nil {
			return fmt.Errorf("failed to update record %s: %w", record.Key, err)
		}
	}
	return nil
}
