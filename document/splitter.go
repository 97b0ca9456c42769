package document

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 750

	// DefaultChunkOverlap is the number of characters shared between
	// adjacent chunks.
	DefaultChunkOverlap = 100
)

// Splitter splits page text into overlapping chunks addressed by their
// file, page range and position.
type Splitter interface {
	// Split joins the page texts and produces chunks for the given file
	// metadata and page range. Chunk indices are assigned sequentially
	// from zero within the range, so resplitting the same pages always
	// yields the same chunk keys.
	Split(ctx context.Context, metadata core.FileMetadata, pageRange core.PageRange, pages []Page) ([]core.Chunk, error)
}

// TextSplitter implements Splitter using recursive character splitting.
type TextSplitter struct {
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

// NewSplitter creates a splitter with the default chunk size and overlap.
//
// Returns Splitter interface to enforce abstraction.
func NewSplitter() Splitter {
	return NewSplitterWithSize(DefaultChunkSize, DefaultChunkOverlap)
}

// NewSplitterWithSize creates a splitter with explicit chunk size and overlap.
func NewSplitterWithSize(chunkSize, chunkOverlap int) Splitter {
	return &TextSplitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: slog.Default().With("component", "splitter"),
	}
}

// Split produces chunks from the page texts. Empty pages contribute nothing;
// an entirely empty range yields zero chunks without error.
func (s *TextSplitter) Split(ctx context.Context, metadata core.FileMetadata, pageRange core.PageRange, pages []Page) ([]core.Chunk, error) {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		s.logger.Debug("no text in page range", "range", pageRange.String())
		return []core.Chunk{}, nil
	}

	parts, err := s.splitter.SplitText(strings.Join(texts, "\n"))
	if err != nil {
		s.logger.Error("failed to split text", "range", pageRange.String(), "err", err)
		return nil, err
	}

	chunks := assembleChunks(metadata, pageRange, parts)

	s.logger.Debug("split pages into chunks",
		"range", pageRange.String(),
		"chunks", len(chunks))
	return chunks, nil
}

// assembleChunks drops whitespace-only parts and indexes the kept chunks
// contiguously from zero, so chunk keys never have gaps regardless of what
// the underlying splitter emits.
func assembleChunks(metadata core.FileMetadata, pageRange core.PageRange, parts []string) []core.Chunk {
	chunks := make([]core.Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, core.Chunk{
			Text:         part,
			FileMetadata: metadata,
			PageRange:    pageRange,
			Index:        len(chunks),
		})
	}
	return chunks
}
