package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/queue"
)

// DefaultBatchSize is the number of pages handed to each convert child.
const DefaultBatchSize = 2

var pdfMagic = []byte("%PDF")

// IngestStage downloads the source document, determines its page count and
// fans out one convert-and-chunk child per page batch.
type IngestStage struct {
	fetcher   document.Fetcher
	converter document.Converter
	batchSize int
	logger    *slog.Logger
}

// NewIngestStage creates the ingest-split stage. batchSize falls back to
// DefaultBatchSize when non-positive.
func NewIngestStage(fetcher document.Fetcher, converter document.Converter, batchSize int) (*IngestStage, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if converter == nil {
		return nil, ErrConverterRequired
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &IngestStage{
		fetcher:   fetcher,
		converter: converter,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "ingest-stage"),
	}, nil
}

// Execute fetches the document and fans out convert children covering every
// page. A positive BatchSize on the job overrides the configured page batch
// size. The format check is advisory: a missing PDF magic number is logged,
// conversion downstream is the authority on validity.
func (s *IngestStage) Execute(ctx context.Context, job *core.Job) ([]Fanout, error) {
	data, err := s.fetcher.Fetch(ctx, job.FileMetadata.FileURL)
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		s.logger.Warn("file does not look like a PDF, proceeding anyway",
			"job", job.ID, "file", job.FileID)
	}

	totalPages, err := s.converter.PageCount(ctx, data)
	if err != nil {
		return nil, err
	}
	if totalPages < 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, job.FileID)
	}

	batchSize := s.batchSize
	if job.BatchSize > 0 {
		batchSize = job.BatchSize
	}
	batches, err := core.PageBatches(totalPages, batchSize)
	if err != nil {
		return nil, err
	}
	children := make([]Fanout, 0, len(batches))
	for _, batch := range batches {
		pr := batch
		children = append(children, Fanout{
			Lane: queue.LaneConvert,
			Job: &core.Job{
				UserID:       job.UserID,
				Action:       core.ActionConvertChunk,
				FileID:       job.FileID,
				FileMetadata: job.FileMetadata,
				PageRange:    &pr,
			},
		})
	}

	s.logger.Info("document split into batches",
		"job", job.ID,
		"file", job.FileID,
		"pages", totalPages,
		"batches", len(batches))
	return children, nil
}
