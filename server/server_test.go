package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/jobs"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/query"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedConverter serves a fixed page count with synthetic text.
type fixedConverter struct {
	pages int
}

func (f *fixedConverter) PageCount(ctx context.Context, data []byte) (int, error) {
	return f.pages, nil
}

func (f *fixedConverter) Convert(ctx context.Context, data []byte, pr core.PageRange) ([]document.Page, error) {
	var pages []document.Page
	for n := pr.Start; n < pr.End && n <= f.pages; n++ {
		pages = append(pages, document.Page{Number: n, Text: fmt.Sprintf("Text of page %d.", n)})
	}
	return pages, nil
}

type testEnv struct {
	server  *Server
	jobs    storage.JobRepository
	fileURL string
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jobRepo, vectors, graph, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 test document"))
	}))
	t.Cleanup(fileServer.Close)

	fetcher := document.NewFetcherWithClient(fileServer.Client())
	converter := &fixedConverter{pages: 3}
	splitter := document.NewSplitter()
	provider := mock.NewMockProvider()
	throttle := pipeline.NewThrottle(0)

	dispatcher, err := queue.NewDispatcher()
	require.NoError(t, err)
	t.Cleanup(dispatcher.Drain)

	tracker := jobs.NewStatusTracker(jobRepo)
	driver, err := pipeline.NewDriver(tracker, jobRepo, dispatcher)
	require.NoError(t, err)

	ingestStage, err := pipeline.NewIngestStage(fetcher, converter, 2)
	require.NoError(t, err)
	convertStage, err := pipeline.NewConvertStage(fetcher, converter, splitter)
	require.NoError(t, err)
	vectorStage, err := pipeline.NewVectorStage(provider.Embedder(), vectors)
	require.NoError(t, err)
	graphStage, err := pipeline.NewGraphStage(provider.GraphExtractor(), graph, throttle)
	require.NoError(t, err)

	require.NoError(t, dispatcher.RegisterLane(queue.LaneIngest, driver.Handler(ingestStage), 1))
	require.NoError(t, dispatcher.RegisterLane(queue.LaneConvert, driver.Handler(convertStage), 1))
	require.NoError(t, dispatcher.RegisterLane(queue.LaneVector, driver.Handler(vectorStage), 1))
	require.NoError(t, dispatcher.RegisterLane(queue.LaneGraph, driver.Handler(graphStage), 1))

	inline, err := pipeline.NewInlineIngestor(fetcher, converter, splitter, provider, vectors, graph, throttle, 2)
	require.NoError(t, err)

	orchestrator, err := query.NewOrchestrator(provider.Embedder(), vectors,
		map[ai.ProviderKind]ai.Generator{ai.ProviderOpenAI: provider.Generator()},
		query.WithGraph(graph))
	require.NoError(t, err)

	return &testEnv{
		server:  NewServer(jobRepo, vectors, graph, dispatcher, inline, orchestrator),
		jobs:    jobRepo,
		fileURL: fileServer.URL,
	}
}

func (env *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	return w
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	return w
}

func decodeLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &frame), "line: %s", line)
		frames = append(frames, frame)
	}
	return frames
}

func TestIngest_AcceptsAndTracksJob(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/ingest", IngestRequest{
		UserID:  "user-1",
		FileID:  "file-1",
		FileURL: env.fileURL + "/doc.pdf",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID := resp["job_id"]
	require.NotEmpty(t, jobID)
	_, err := uuid.Parse(jobID)
	require.NoError(t, err)

	// The queued pipeline drives the root job to FINISHED
	deadline := time.Now().Add(10 * time.Second)
	for {
		job, err := env.jobs.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == core.StatusFinished {
			assert.True(t, job.FanoutComplete)
			assert.Len(t, job.ChildIDs, 2, "3 pages at batch size 2")
			break
		}
		if job.Status == core.StatusFailed {
			t.Fatalf("root job failed: %s", job.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestIngest_ValidationErrors(t *testing.T) {
	env := setupServer(t)

	// Missing user id
	w := env.post(t, "/ingest", IngestRequest{FileID: "f", FileURL: "http://example.com/f.pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing file url
	w = env.post(t, "/ingest", IngestRequest{UserID: "u", FileID: "f"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_Codes(t *testing.T) {
	env := setupServer(t)

	w := env.get(t, "/jobs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.get(t, "/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)

	job, err := env.jobs.Insert(context.Background(), &core.Job{
		UserID: "user-1",
		Action: core.ActionIngestSplit,
		Status: core.StatusQueued,
		FileID: "file-1",
		FileMetadata: core.FileMetadata{
			FileID:  "file-1",
			FileURL: env.fileURL + "/doc.pdf",
		},
	})
	require.NoError(t, err)

	w = env.get(t, "/jobs/"+job.ID)
	require.Equal(t, http.StatusOK, w.Code)

	var got core.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, core.StatusQueued, got.Status)
}

func TestIngestStream_EmitsCheckpoints(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/ingest-stream", IngestRequest{
		UserID:  "user-1",
		FileID:  "file-2",
		FileURL: env.fileURL + "/doc.pdf",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "ndjson")

	frames := decodeLines(t, w.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, "downloading", frames[0]["status"])
	assert.Equal(t, "completed", frames[len(frames)-1]["status"])
}

func TestIngestStream_RequiresFileFields(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/ingest-stream", IngestRequest{UserID: "u"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryStream_FrameOrder(t *testing.T) {
	env := setupServer(t)

	// Ingest inline first so the vector store has content
	w := env.post(t, "/ingest-stream", IngestRequest{
		UserID:  "user-1",
		FileID:  "file-3",
		FileURL: env.fileURL + "/doc.pdf",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.post(t, "/query-stream", query.Request{
		Question: "what is on the first page?",
		TopK:     2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	frames := decodeLines(t, w.Body.String())
	require.NotEmpty(t, frames)

	refIdx, tokenIdx := -1, -1
	for i, f := range frames {
		switch f["event"] {
		case "references":
			if refIdx == -1 {
				refIdx = i
			}
		case "token":
			if tokenIdx == -1 {
				tokenIdx = i
			}
		}
	}
	require.GreaterOrEqual(t, refIdx, 0, "references frame present")
	require.GreaterOrEqual(t, tokenIdx, 0, "token frames present")
	assert.Less(t, refIdx, tokenIdx)

	last := frames[len(frames)-1]
	assert.Equal(t, "done", last["event"])
	done := last["data"].(map[string]any)
	assert.GreaterOrEqual(t, done["hits"], float64(1))
}

func TestQueryStream_EmptyQuestion(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/query-stream", query.Request{Question: ""})
	require.Equal(t, http.StatusOK, w.Code)

	frames := decodeLines(t, w.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, "error", frames[len(frames)-1]["event"])
}

func TestHealth(t *testing.T) {
	env := setupServer(t)

	w := env.get(t, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["healthy"])
	deps := resp["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["job_store"])
	assert.Equal(t, "ok", deps["vector_store"])
	assert.Equal(t, "ok", deps["graph_store"])
	assert.Equal(t, "ok", deps["llm"])
}

func TestIngest_PerRequestBatchSize(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/ingest", map[string]any{
		"user_id":    "user-1",
		"file_id":    "file-bs",
		"file_url":   env.fileURL + "/doc.pdf",
		"metadata":   map[string]string{"source": "unit"},
		"batch_size": 1,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID := resp["job_id"]
	require.NotEmpty(t, jobID)

	job, err := env.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.BatchSize)
	assert.Equal(t, "unit", job.FileMetadata.Extra["source"])

	deadline := time.Now().Add(10 * time.Second)
	for {
		job, err = env.jobs.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == core.StatusFinished {
			assert.Len(t, job.ChildIDs, 3, "3 pages at a batch size of 1")
			break
		}
		if job.Status == core.StatusFailed {
			t.Fatalf("root job failed: %s", job.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// A negative batch size never reaches the pipeline
	w = env.post(t, "/ingest", map[string]any{
		"user_id":    "user-1",
		"file_id":    "file-bs",
		"file_url":   env.fileURL + "/doc.pdf",
		"batch_size": -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryStream_WireBody(t *testing.T) {
	env := setupServer(t)

	w := env.post(t, "/ingest-stream", IngestRequest{
		UserID:  "user-1",
		FileID:  "file-wire",
		FileURL: env.fileURL + "/doc.pdf",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.post(t, "/query-stream", map[string]any{
		"query":   "what is on the first page?",
		"top_k":   2,
		"model":   "openai",
		"user_id": "user-1",
		"previous_messages": []map[string]string{
			{"role": "user", "content": "hello"},
			{"role": "assistant", "content": "hi there"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	frames := decodeLines(t, w.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, "done", frames[len(frames)-1]["event"])
}
