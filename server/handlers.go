package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/query"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage"
)

// IngestRequest is the body of POST /ingest and POST /ingest-stream.
type IngestRequest struct {
	UserID    string            `json:"user_id"`
	FileID    string            `json:"file_id"`
	FileName  string            `json:"file_name"`
	FileURL   string            `json:"file_url"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	BatchSize int               `json:"batch_size,omitempty"`
}

func (r *IngestRequest) metadata() core.FileMetadata {
	return core.FileMetadata{
		FileID:   r.FileID,
		FileName: r.FileName,
		FileURL:  r.FileURL,
		Extra:    r.Metadata,
	}
}

// handleIngest accepts a document for asynchronous processing: the root job
// is created QUEUED and dispatched to the ingest lane, and the job id is
// returned for polling.
func (s *Server) handleIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	job := &core.Job{
		UserID:       req.UserID,
		Action:       core.ActionIngestSplit,
		Status:       core.StatusQueued,
		FileID:       req.FileID,
		FileMetadata: req.metadata(),
		BatchSize:    req.BatchSize,
	}

	inserted, err := s.jobs.Insert(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, core.ErrInvalidJob) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("failed to insert job", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := s.dispatcher.Enqueue(c.Request.Context(), queue.LaneIngest, inserted); err != nil {
		s.logger.Error("failed to dispatch job", "job", inserted.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": inserted.ID})
}

// handleGetJob returns the full job record for polling.
func (s *Server) handleGetJob(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed job id"})
		return
	}

	job, err := s.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		s.logger.Error("failed to load job", "job", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleIngestStream runs the inline ingestion path, streaming one
// checkpoint event per line. Client disconnect cancels further work at the
// next chunk boundary.
func (s *Server) handleIngestStream(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.FileID == "" || req.FileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id and file_url are required"})
		return
	}
	if req.BatchSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_size must not be negative"})
		return
	}

	writer := newStreamWriter(c)
	emitter := pipeline.EmitterFunc(func(ctx context.Context, event pipeline.Event) error {
		return writer.writeLine(event)
	})

	if err := s.inline.Run(c.Request.Context(), req.metadata(), req.BatchSize, emitter); err != nil {
		// Terminal error event was already emitted; nothing more to send.
		s.logger.Warn("inline ingestion ended with error", "file", req.FileID, "err", err)
	}
}

// handleQueryStream runs one retrieval-augmented query, streaming frames:
// status, references, tokens, then a terminal done or error frame.
func (s *Server) handleQueryStream(c *gin.Context) {
	var req query.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	writer := newStreamWriter(c)
	sink := query.FrameSinkFunc(func(ctx context.Context, frame query.Frame) error {
		return writer.writeLine(frame)
	})

	if err := s.orchestrator.Run(c.Request.Context(), req, sink); err != nil {
		s.logger.Warn("query ended with error", "err", err)
	}
}

// handleHealth reports per-dependency connectivity. Job store failure is
// fatal (503); a degraded graph store still reports 200.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	statuses := gin.H{}
	healthy := true

	if _, err := s.jobs.Get(ctx, "health-probe"); err != nil && !errors.Is(err, storage.ErrNotFound) {
		statuses["job_store"] = "unavailable"
		healthy = false
	} else {
		statuses["job_store"] = "ok"
	}

	if _, err := s.vectors.Count(ctx); err != nil {
		statuses["vector_store"] = "unavailable"
		healthy = false
	} else {
		statuses["vector_store"] = "ok"
	}

	if s.graph == nil {
		statuses["graph_store"] = "disabled"
	} else if _, err := s.graph.FindEntitiesByName(ctx, "health-probe"); err != nil {
		// Graph is an optional enhancer; degraded, not fatal
		statuses["graph_store"] = "degraded"
	} else {
		statuses["graph_store"] = "ok"
	}

	// Generators are constructed eagerly at startup; connectivity is not
	// probed here to avoid spending tokens on a health check.
	if len(s.orchestrator.Providers()) > 0 {
		statuses["llm"] = "ok"
	} else {
		statuses["llm"] = "unavailable"
		healthy = false
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "dependencies": statuses})
}

// streamWriter frames newline-delimited JSON and flushes every line so
// consumers perceive progress immediately.
type streamWriter struct {
	c *gin.Context
}

func newStreamWriter(c *gin.Context) *streamWriter {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	return &streamWriter{c: c}
}

func (w *streamWriter) writeLine(v any) error {
	if err := w.c.Request.Context().Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.c.Writer.Write(append(data, '\n')); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
