package document

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata() core.FileMetadata {
	return core.FileMetadata{
		FileID:   "file-1",
		FileName: "report.pdf",
		FileURL:  "http://example.com/report.pdf",
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	splitter := NewSplitter()
	pages := []Page{{Number: 1, Text: "A short page of text."}}

	chunks, err := splitter.Split(context.Background(), testMetadata(), core.PageRange{Start: 1, End: 2}, pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short page of text.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "file-1_1_2_chunk_0", chunks[0].Key())
}

func TestSplit_LongTextProducesMultipleChunks(t *testing.T) {
	splitter := NewSplitter()
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Sentence number with some filler words to pad out length. ")
	}
	pages := []Page{{Number: 1, Text: sb.String()}}

	chunks, err := splitter.Split(context.Background(), testMetadata(), core.PageRange{Start: 1, End: 2}, pages)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "long text should produce multiple chunks")

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), DefaultChunkSize+DefaultChunkOverlap,
			"chunk should respect the configured size")
	}

	// Indices ascend and keys embed the page range
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Contains(t, c.Key(), "file-1_1_2_chunk_")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	splitter := NewSplitter()
	pages := []Page{
		{Number: 1, Text: strings.Repeat("Alpha beta gamma delta. ", 100)},
		{Number: 2, Text: strings.Repeat("Epsilon zeta eta theta. ", 100)},
	}
	pr := core.PageRange{Start: 1, End: 3}

	first, err := splitter.Split(context.Background(), testMetadata(), pr, pages)
	require.NoError(t, err)
	second, err := splitter.Split(context.Background(), testMetadata(), pr, pages)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key(), "resplitting must yield identical keys")
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestSplit_EmptyPages(t *testing.T) {
	splitter := NewSplitter()

	chunks, err := splitter.Split(context.Background(), testMetadata(), core.PageRange{Start: 1, End: 2}, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = splitter.Split(context.Background(), testMetadata(), core.PageRange{Start: 1, End: 3},
		[]Page{{Number: 1, Text: "   "}, {Number: 2, Text: "\n\t"}})
	require.NoError(t, err)
	assert.Empty(t, chunks, "whitespace-only pages produce no chunks")
}

func TestSplit_CustomSize(t *testing.T) {
	splitter := NewSplitterWithSize(64, 16)
	pages := []Page{{Number: 1, Text: strings.Repeat("word another phrase here. ", 20)}}

	chunks, err := splitter.Split(context.Background(), testMetadata(), core.PageRange{Start: 1, End: 2}, pages)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 64+16)
	}
}

func TestAssembleChunks_ContiguousIndices(t *testing.T) {
	parts := []string{"first piece", "   ", "second piece", "", "third piece"}

	chunks := assembleChunks(testMetadata(), core.PageRange{Start: 1, End: 3}, parts)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "kept chunks index from zero with no gaps")
	}
	assert.Equal(t, "file-1_1_3_chunk_0", chunks[0].Key())
	assert.Equal(t, "file-1_1_3_chunk_2", chunks[2].Key())
}
