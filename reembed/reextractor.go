package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
)

// GraphReextractor re-runs knowledge graph extraction over every stored
// chunk text, typically after an extraction model or prompt change. Merging
// is idempotent, so re-extracting over an existing graph only adds or
// refreshes entities and relations.
type GraphReextractor struct {
	vectors   storage.VectorRepository
	graph     storage.GraphRepository
	extractor ai.GraphExtractor
	throttle  *pipeline.Throttle
	config    *Config
	progress  io.Writer
	iterator  *RecordIterator
}

// NewGraphReextractor creates a graph reextractor. throttle may be nil to
// run unthrottled.
func NewGraphReextractor(
	vectors storage.VectorRepository,
	graph storage.GraphRepository,
	extractor ai.GraphExtractor,
	throttle *pipeline.Throttle,
	config *Config,
	progress io.Writer,
) (*GraphReextractor, error) {
	if vectors == nil || graph == nil {
		return nil, ErrRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if throttle == nil {
		throttle = pipeline.NewThrottle(0)
	}

	return &GraphReextractor{
		vectors:   vectors,
		graph:     graph,
		extractor: extractor,
		throttle:  throttle,
		config:    config,
		progress:  progress,
		iterator:  NewRecordIterator(vectors, config.BatchSize),
	}, nil
}

// Run re-extracts the graph for every stored chunk.
func (g *GraphReextractor) Run(ctx context.Context) error {
	total, err := g.vectors.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(g.progress, "No records found in index (0 records)\n")
		return nil
	}

	fmt.Fprintf(g.progress, "Starting graph re-extraction over %d chunks\n", total)

	tracker := NewProgressTracker(g.progress, total, g.config.ReportInterval)
	tracker.Start()

	processed := 0
	totalEntities := 0
	totalRelations := 0

	err = g.iterator.ForEach(ctx, func(records []*storage.VectorRecord) error {
		for _, record := range records {
			entities, relations, err := g.processRecord(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to re-extract chunk %s: %w", record.Key, err)
			}
			totalEntities += entities
			totalRelations += relations
			processed++
			tracker.Update(processed)
		}
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(g.progress, "Re-extraction complete. %d chunks, %d entities, %d relations in %v\n",
		total, totalEntities, totalRelations, elapsed.Round(time.Second))
	return nil
}

func (g *GraphReextractor) processRecord(ctx context.Context, record *storage.VectorRecord) (int, int, error) {
	if err := g.throttle.Wait(ctx); err != nil {
		return 0, 0, err
	}

	var extracted *ai.ExtractedGraph
	err := document.RetryWithBackoff(ctx, func() error {
		var err error
		extracted, err = g.extractor.ExtractGraph(ctx, record.Text)
		return err
	}, g.config.MaxRetries, g.config.RetryDelay)
	if err != nil {
		return 0, 0, err
	}
	if len(extracted.Entities) == 0 {
		return 0, 0, nil
	}

	return pipeline.MergeExtractedGraph(ctx, g.graph, record.Key, extracted)
}
