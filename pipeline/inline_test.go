package pipeline

import (
	"context"
	"testing"

	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	events []Event
	failAt string // when set, Emit fails once this status is seen
}

func (r *eventRecorder) Emit(ctx context.Context, event Event) error {
	if r.failAt != "" && event.Status == r.failAt {
		return context.Canceled
	}
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) statuses() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}

func setupInline(t *testing.T, fetcher document.Fetcher, pages int) (*InlineIngestor, storage.VectorRepository, storage.GraphRepository) {
	t.Helper()
	_, vectors, graph, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ingestor, err := NewInlineIngestor(
		fetcher, &fakeConverter{pages: pages}, document.NewSplitter(),
		mock.NewMockProvider(), vectors, graph, NewThrottle(0), 2)
	require.NoError(t, err)
	return ingestor, vectors, graph
}

func TestInlineIngestor_EmitsOrderedCheckpoints(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	ingestor, vectors, _ := setupInline(t, fetcher, 3)

	recorder := &eventRecorder{}
	err := ingestor.Run(context.Background(), metadataFor(server.URL), 0, recorder)
	require.NoError(t, err)

	statuses := recorder.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, "downloading", statuses[0])
	assert.Equal(t, "converting", statuses[1])
	assert.Equal(t, "completed", statuses[len(statuses)-1])

	// 3 pages at batch size 2 -> two embedding checkpoints
	embedding := 0
	for _, s := range statuses {
		if s == "embedding" {
			embedding++
		}
	}
	assert.Equal(t, 2, embedding)

	count, err := vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Greater(t, count, 0, "chunks reached the vector store")

	final := recorder.events[len(recorder.events)-1]
	assert.Equal(t, 3, final.Fields["total_pages"])
	assert.Equal(t, count, final.Fields["total_chunks"])
}

func TestInlineIngestor_EmptyDownloadEmitsError(t *testing.T) {
	server, fetcher := pdfServer(t, "")
	ingestor, _, _ := setupInline(t, fetcher, 3)

	recorder := &eventRecorder{}
	err := ingestor.Run(context.Background(), metadataFor(server.URL), 0, recorder)
	assert.ErrorIs(t, err, document.ErrEmptyDownload)

	statuses := recorder.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, "error", statuses[len(statuses)-1], "exactly one terminal error event")
	assert.NotContains(t, statuses, "completed")
}

func TestInlineIngestor_ConsumerGoneStopsWork(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	ingestor, _, _ := setupInline(t, fetcher, 6)

	recorder := &eventRecorder{failAt: "embedding"}
	err := ingestor.Run(context.Background(), metadataFor(server.URL), 0, recorder)
	require.Error(t, err)

	assert.NotContains(t, recorder.statuses(), "completed",
		"no terminal event after the consumer disconnected")
}

func TestInlineIngestor_CanceledBetweenChunks(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	ingestor, _, _ := setupInline(t, fetcher, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := &eventRecorder{}
	err := ingestor.Run(ctx, metadataFor(server.URL), 0, recorder)
	require.Error(t, err)
}

func TestInlineIngestor_BatchSizeOverride(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	ingestor, _, _ := setupInline(t, fetcher, 3)

	recorder := &eventRecorder{}
	err := ingestor.Run(context.Background(), metadataFor(server.URL), 1, recorder)
	require.NoError(t, err)

	// 3 pages at an override of 1 page per batch -> three embedding checkpoints
	embedding := 0
	for _, s := range recorder.statuses() {
		if s == "embedding" {
			embedding++
		}
	}
	assert.Equal(t, 3, embedding)
}

func TestInlineIngestor_DisconnectFinishesCurrentChunk(t *testing.T) {
	server, fetcher := pdfServer(t, "%PDF-1.4 content")
	_, vectors, graph, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		// The consumer goes away while this chunk is being embedded.
		cancel()
		return []float32{0.1, 0.2, 0.3}, nil
	}
	extractor := mock.NewMockGraphExtractor()
	provider := mock.NewMockProviderWithServices(embedder, extractor, mock.NewMockGenerator())

	ingestor, err := NewInlineIngestor(
		fetcher, &fakeConverter{pages: 4}, document.NewSplitter(),
		provider, vectors, graph, NewThrottle(0), 2)
	require.NoError(t, err)

	recorder := &eventRecorder{}
	err = ingestor.Run(ctx, metadataFor(server.URL), 0, recorder)
	require.ErrorIs(t, err, context.Canceled)

	count, err := vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the chunk in flight still reached the vector store")
	assert.Equal(t, 1, extractor.CallCount(), "its graph extraction completed too")
	assert.NotContains(t, recorder.statuses(), "completed")
}
