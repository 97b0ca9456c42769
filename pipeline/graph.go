package pipeline

import (
	"context"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// DefaultExtractorRPM is the published requests-per-minute ceiling of the
// extraction provider's free tier. It yields a fixed 4s inter-call delay.
const DefaultExtractorRPM = 15

// GraphStage extracts entities and relations from one chunk and merges them
// into the graph store. Extraction calls are throttled to the provider's
// rate ceiling.
type GraphStage struct {
	extractor ai.GraphExtractor
	graph     storage.GraphRepository
	throttle  *Throttle
	logger    *slog.Logger
}

// NewGraphStage creates the graph-embed stage. The throttle is shared across
// all workers of the lane so the combined call rate stays under the ceiling.
func NewGraphStage(extractor ai.GraphExtractor, graph storage.GraphRepository, throttle *Throttle) (*GraphStage, error) {
	if extractor == nil {
		return nil, ErrProviderRequired
	}
	if graph == nil {
		return nil, ErrRepositoryRequired
	}
	if throttle == nil {
		throttle = NewThrottle(DefaultExtractorRPM)
	}
	return &GraphStage{
		extractor: extractor,
		graph:     graph,
		throttle:  throttle,
		logger:    slog.Default().With("component", "graph-stage"),
	}, nil
}

// Execute extracts a graph from the chunk text and merges it. Merges are
// content-addressed, so redelivery of the same chunk is idempotent. No
// fan-out.
func (s *GraphStage) Execute(ctx context.Context, job *core.Job) ([]Fanout, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	extracted, err := s.extractor.ExtractGraph(ctx, job.ChunkText)
	if err != nil {
		return nil, err
	}
	if len(extracted.Entities) == 0 {
		s.logger.Debug("no entities in chunk", "job", job.ID)
		return nil, nil
	}

	chunkKey := core.ChunkKey(job.FileID, *job.PageRange, *job.ChunkIndex)
	entities, relations, err := MergeExtractedGraph(ctx, s.graph, chunkKey, extracted)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("graph merged",
		"job", job.ID,
		"chunk", chunkKey,
		"entities", entities,
		"relations", relations)
	return nil, nil
}

// MergeExtractedGraph converts an extraction result to storage records and
// merges them, returning the entity and relation counts. Shared by the
// queued stage, the inline ingestor and graph maintenance.
func MergeExtractedGraph(ctx context.Context, graph storage.GraphRepository, chunkKey string, extracted *ai.ExtractedGraph) (int, int, error) {
	entities := make([]*storage.GraphEntity, 0, len(extracted.Entities))
	ids := make(map[string]core.ID, len(extracted.Entities))
	for _, e := range extracted.Entities {
		entity := &storage.GraphEntity{Name: e.Name, Type: e.Type}
		entity.ID = core.IDFromContent(entity.Tuple())
		entities = append(entities, entity)
		ids[e.Name] = entity.ID
	}
	if err := graph.MergeEntities(ctx, entities...); err != nil {
		return 0, 0, err
	}

	relations := make([]*storage.GraphRelation, 0, len(extracted.Relations))
	for _, r := range extracted.Relations {
		sourceID, okS := ids[r.Source]
		targetID, okT := ids[r.Target]
		if !okS || !okT {
			continue
		}
		relations = append(relations, &storage.GraphRelation{
			SourceID: sourceID,
			TargetID: targetID,
			Type:     r.Type,
			ChunkKey: chunkKey,
		})
	}
	if len(relations) > 0 {
		if err := graph.MergeRelations(ctx, relations...); err != nil {
			return len(entities), 0, err
		}
	}
	return len(entities), len(relations), nil
}
