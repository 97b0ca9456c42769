package pipeline

import (
	"context"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/queue"
)

// ConvertStage converts one page batch to text, splits it into chunks and
// fans out a vector-embed and a graph-embed child per chunk.
type ConvertStage struct {
	fetcher   document.Fetcher
	converter document.Converter
	splitter  document.Splitter
	logger    *slog.Logger
}

// NewConvertStage creates the convert-and-chunk stage.
func NewConvertStage(fetcher document.Fetcher, converter document.Converter, splitter document.Splitter) (*ConvertStage, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if converter == nil {
		return nil, ErrConverterRequired
	}
	if splitter == nil {
		return nil, ErrSplitterRequired
	}
	return &ConvertStage{
		fetcher:   fetcher,
		converter: converter,
		splitter:  splitter,
		logger:    slog.Default().With("component", "convert-stage"),
	}, nil
}

// Execute converts the job's page range and fans out two embed children per
// chunk. Jobs carry only metadata, so the source bytes are fetched again
// here; the chunk text rides on the child job records.
func (s *ConvertStage) Execute(ctx context.Context, job *core.Job) ([]Fanout, error) {
	data, err := s.fetcher.Fetch(ctx, job.FileMetadata.FileURL)
	if err != nil {
		return nil, err
	}

	pages, err := s.converter.Convert(ctx, data, *job.PageRange)
	if err != nil {
		return nil, err
	}

	chunks, err := s.splitter.Split(ctx, job.FileMetadata, *job.PageRange, pages)
	if err != nil {
		return nil, err
	}

	children := make([]Fanout, 0, 2*len(chunks))
	for _, chunk := range chunks {
		index := chunk.Index
		for _, target := range []struct {
			action core.JobAction
			lane   string
		}{
			{core.ActionVectorEmbed, queue.LaneVector},
			{core.ActionGraphEmbed, queue.LaneGraph},
		} {
			children = append(children, Fanout{
				Lane: target.lane,
				Job: &core.Job{
					UserID:       job.UserID,
					Action:       target.action,
					FileID:       job.FileID,
					FileMetadata: job.FileMetadata,
					PageRange:    job.PageRange,
					ChunkIndex:   &index,
					ChunkText:    chunk.Text,
				},
			})
		}
	}

	s.logger.Info("page batch chunked",
		"job", job.ID,
		"file", job.FileID,
		"range", job.PageRange.String(),
		"chunks", len(chunks))
	return children, nil
}
