package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConverter serves a fixed number of pages with synthetic text.
type fakeConverter struct {
	pages int
}

func (f *fakeConverter) PageCount(ctx context.Context, data []byte) (int, error) {
	return f.pages, nil
}

func (f *fakeConverter) Convert(ctx context.Context, data []byte, pr core.PageRange) ([]document.Page, error) {
	var pages []document.Page
	for n := pr.Start; n < pr.End && n <= f.pages; n++ {
		pages = append(pages, document.Page{Number: n, Text: fmt.Sprintf("Text of page %d.", n)})
	}
	return pages, nil
}

func pdfServer(t *testing.T, body string) (*httptest.Server, document.Fetcher) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, document.NewFetcherWithClient(server.Client())
}

func metadataFor(url string) core.FileMetadata {
	return core.FileMetadata{FileID: "file-1", FileName: "doc.pdf", FileURL: url}
}

func TestIngestStage_FansOutBatches(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	stage, err := NewIngestStage(fetcher, &fakeConverter{pages: 5}, 2)
	require.NoError(t, err)

	job := &core.Job{
		ID:           "parent",
		UserID:       "user-1",
		Action:       core.ActionIngestSplit,
		FileID:       "file-1",
		FileMetadata: metadataFor(server.URL),
	}

	children, err := stage.Execute(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, children, 3, "5 pages at batch size 2 yield 3 batches")

	wantRanges := []core.PageRange{{Start: 1, End: 3}, {Start: 3, End: 5}, {Start: 5, End: 6}}
	for i, child := range children {
		assert.Equal(t, queue.LaneConvert, child.Lane)
		assert.Equal(t, core.ActionConvertChunk, child.Job.Action)
		assert.Equal(t, "user-1", child.Job.UserID)
		require.NotNil(t, child.Job.PageRange)
		assert.Equal(t, wantRanges[i], *child.Job.PageRange)
	}
}

func TestIngestStage_JobBatchSizeOverride(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	stage, err := NewIngestStage(fetcher, &fakeConverter{pages: 5}, 2)
	require.NoError(t, err)

	job := &core.Job{
		ID:           "parent",
		UserID:       "user-1",
		Action:       core.ActionIngestSplit,
		FileID:       "file-1",
		FileMetadata: metadataFor(server.URL),
		BatchSize:    5,
	}

	children, err := stage.Execute(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, children, 1, "a job-level batch size wins over the configured default")
	assert.Equal(t, core.PageRange{Start: 1, End: 6}, *children[0].Job.PageRange)
}

func TestIngestStage_NonPDFBytesProceed(t *testing.T) {
	// Format mismatch is advisory; the converter is the authority
	server, fetcher := pdfServer(t, "plain text, no magic number")
	stage, err := NewIngestStage(fetcher, &fakeConverter{pages: 1}, 2)
	require.NoError(t, err)

	children, err := stage.Execute(context.Background(), &core.Job{
		ID: "p", UserID: "u", Action: core.ActionIngestSplit,
		FileID: "file-1", FileMetadata: metadataFor(server.URL),
	})
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestIngestStage_EmptyDownloadFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stage, err := NewIngestStage(document.NewFetcherWithClient(server.Client()), &fakeConverter{pages: 3}, 2)
	require.NoError(t, err)

	_, err = stage.Execute(context.Background(), &core.Job{
		ID: "p", UserID: "u", Action: core.ActionIngestSplit,
		FileID: "file-1", FileMetadata: metadataFor(server.URL),
	})
	assert.ErrorIs(t, err, document.ErrEmptyDownload)
}

func TestIngestStage_NoPages(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4")
	stage, err := NewIngestStage(fetcher, &fakeConverter{pages: 0}, 2)
	require.NoError(t, err)

	_, err = stage.Execute(context.Background(), &core.Job{
		ID: "p", UserID: "u", Action: core.ActionIngestSplit,
		FileID: "file-1", FileMetadata: metadataFor(server.URL),
	})
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestConvertStage_TwoChildrenPerChunk(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	stage, err := NewConvertStage(fetcher, &fakeConverter{pages: 4}, document.NewSplitter())
	require.NoError(t, err)

	pr := core.PageRange{Start: 1, End: 3}
	children, err := stage.Execute(context.Background(), &core.Job{
		ID: "parent", UserID: "user-1", Action: core.ActionConvertChunk,
		FileID: "file-1", FileMetadata: metadataFor(server.URL), PageRange: &pr,
	})
	require.NoError(t, err)
	require.NotEmpty(t, children)
	require.Equal(t, 0, len(children)%2, "children come in vector/graph pairs")

	for i := 0; i < len(children); i += 2 {
		vectorChild, graphChild := children[i], children[i+1]
		assert.Equal(t, queue.LaneVector, vectorChild.Lane)
		assert.Equal(t, core.ActionVectorEmbed, vectorChild.Job.Action)
		assert.Equal(t, queue.LaneGraph, graphChild.Lane)
		assert.Equal(t, core.ActionGraphEmbed, graphChild.Job.Action)

		// Both siblings carry the same chunk payload
		assert.Equal(t, vectorChild.Job.ChunkText, graphChild.Job.ChunkText)
		assert.NotEmpty(t, vectorChild.Job.ChunkText)
		require.NotNil(t, vectorChild.Job.ChunkIndex)
		require.NotNil(t, graphChild.Job.ChunkIndex)
		assert.Equal(t, *vectorChild.Job.ChunkIndex, *graphChild.Job.ChunkIndex)
		assert.Equal(t, pr, *vectorChild.Job.PageRange)
	}
}

func TestVectorStage_IdempotentUpsert(t *testing.T) {
	_, vectors, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	stage, err := NewVectorStage(mock.NewMockEmbedder(), vectors)
	require.NoError(t, err)

	pr := core.PageRange{Start: 1, End: 3}
	index := 0
	job := &core.Job{
		ID: "j1", UserID: "u", Action: core.ActionVectorEmbed,
		FileID: "file-1", FileMetadata: core.FileMetadata{FileID: "file-1"},
		PageRange: &pr, ChunkIndex: &index, ChunkText: "some chunk text",
	}
	ctx := context.Background()

	children, err := stage.Execute(ctx, job)
	require.NoError(t, err)
	assert.Empty(t, children, "embed stages do not fan out")

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Redelivery overwrites under the same deterministic id
	_, err = stage.Execute(ctx, job)
	require.NoError(t, err)
	count, err = vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGraphStage_MergesEntitiesAndRelations(t *testing.T) {
	_, _, graph, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	extractor := mock.NewMockGraphExtractor()
	stage, err := NewGraphStage(extractor, graph, NewThrottle(0))
	require.NoError(t, err)

	pr := core.PageRange{Start: 1, End: 3}
	index := 0
	job := &core.Job{
		ID: "j1", UserID: "u", Action: core.ActionGraphEmbed,
		FileID: "file-1", FileMetadata: core.FileMetadata{FileID: "file-1"},
		PageRange: &pr, ChunkIndex: &index,
		ChunkText: "aspirin treats headache according to clinical guidance",
	}
	ctx := context.Background()

	children, err := stage.Execute(ctx, job)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 1, extractor.CallCount())

	entities, err := graph.FindEntitiesByName(ctx, "aspirin")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	relations, err := graph.RelationsForEntity(ctx, entities[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, relations)

	// Redelivery merges idempotently
	_, err = stage.Execute(ctx, job)
	require.NoError(t, err)
	again, err := graph.RelationsForEntity(ctx, entities[0].ID)
	require.NoError(t, err)
	assert.Equal(t, len(relations), len(again))
}
