package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Page is the extracted text of a single document page.
type Page struct {
	// Number is the 1-based page number within the document.
	Number int

	// Text is the extracted plain text of the page.
	Text string
}

// Converter parses raw document bytes into per-page text.
type Converter interface {
	// PageCount returns the total number of pages in the document.
	PageCount(ctx context.Context, data []byte) (int, error)

	// Convert extracts the text of the pages within pageRange.
	// Pages outside the document are silently skipped.
	Convert(ctx context.Context, data []byte, pageRange core.PageRange) ([]Page, error)
}

// PDFConverter implements Converter for PDF documents.
type PDFConverter struct {
	logger *slog.Logger
}

// NewPDFConverter creates a converter for PDF documents.
//
// Returns Converter interface to enforce abstraction.
func NewPDFConverter() Converter {
	return &PDFConverter{
		logger: slog.Default().With("component", "pdf-converter"),
	}
}

// PageCount returns the number of pages in the PDF.
func (c *PDFConverter) PageCount(ctx context.Context, data []byte) (int, error) {
	docs, err := c.load(ctx, data)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if total, ok := metadataInt(docs[0].Metadata, "total_pages"); ok {
		return total, nil
	}
	return len(docs), nil
}

// Convert extracts the text of the pages whose number falls within pageRange.
func (c *PDFConverter) Convert(ctx context.Context, data []byte, pageRange core.PageRange) ([]Page, error) {
	docs, err := c.load(ctx, data)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, pageRange.End-pageRange.Start)
	for i, doc := range docs {
		number, ok := metadataInt(doc.Metadata, "page")
		if !ok {
			number = i + 1
		}
		if number < pageRange.Start || number >= pageRange.End {
			continue
		}
		pages = append(pages, Page{Number: number, Text: doc.PageContent})
	}

	c.logger.Debug("converted pages",
		"range", pageRange.String(),
		"pages", len(pages))
	return pages, nil
}

func (c *PDFConverter) load(ctx context.Context, data []byte) ([]schema.Document, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		c.logger.Error("failed to parse PDF", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return docs, nil
}

// metadataInt reads an integer metadata value, tolerating the numeric types
// different loaders produce.
func metadataInt(metadata map[string]any, key string) (int, bool) {
	switch v := metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
