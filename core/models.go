package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for content-addressed entities (chunks, vector
// records, graph nodes). It is generated with content-based hashing so that
// identical content produces identical IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// JobStatus describes where a job is in its lifecycle.
//
// The transition graph is QUEUED -> STARTED -> {FINISHED, FAILED}.
// RETRYING is reachable from STARTED or FAILED and returns to STARTED;
// it is the only way out of a terminal state and must be an explicit,
// logged decision.
type JobStatus string

const (
	StatusQueued   JobStatus = "queued"
	StatusStarted  JobStatus = "started"
	StatusFinished JobStatus = "finished"
	StatusFailed   JobStatus = "failed"
	StatusRetrying JobStatus = "retrying"
)

// Terminal reports whether the status permits no further forward transition.
func (s JobStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusStarted
	case StatusStarted:
		return next == StatusFinished || next == StatusFailed || next == StatusRetrying
	case StatusFailed:
		return next == StatusRetrying
	case StatusRetrying:
		return next == StatusStarted
	default:
		return false
	}
}

// ValidStatus reports whether s is one of the known job statuses.
func ValidStatus(s JobStatus) bool {
	switch s {
	case StatusQueued, StatusStarted, StatusFinished, StatusFailed, StatusRetrying:
		return true
	}
	return false
}

// JobAction identifies the pipeline stage a job belongs to.
type JobAction string

const (
	ActionIngestSplit  JobAction = "ingest-split"
	ActionConvertChunk JobAction = "convert-chunk"
	ActionVectorEmbed  JobAction = "vector-embed"
	ActionGraphEmbed   JobAction = "graph-embed"
	ActionQuery        JobAction = "query"
)

// ValidAction reports whether a is one of the known job actions.
func ValidAction(a JobAction) bool {
	switch a {
	case ActionIngestSplit, ActionConvertChunk, ActionVectorEmbed, ActionGraphEmbed, ActionQuery:
		return true
	}
	return false
}

// PageRange is a contiguous half-open range [Start, End) of 1-based page
// numbers. End is exclusive: pages 1 and 2 of a document are {Start: 1, End: 3}.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// String returns the wire form of the range, "start_end".
// This is the representation carried in vector record payloads.
func (p PageRange) String() string {
	return strconv.Itoa(p.Start) + "_" + strconv.Itoa(p.End)
}

// Pages returns the number of pages covered by the range.
func (p PageRange) Pages() int {
	return p.End - p.Start
}

// Valid reports whether the range is well formed (1-based, non-empty).
func (p PageRange) Valid() bool {
	return p.Start >= 1 && p.End > p.Start
}

// ParsePageRange parses the "start_end" wire form back into a PageRange.
func ParsePageRange(s string) (PageRange, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	pr := PageRange{Start: start, End: end}
	if !pr.Valid() {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	return pr, nil
}

// MaxMetadataExtras bounds the number of caller-supplied extra metadata keys.
const MaxMetadataExtras = 16

// FileMetadata is the typed descriptor of a source file, validated at the
// ingestion boundary. Extra holds a bounded set of caller-supplied key/value
// pairs that the pipeline carries through untouched.
type FileMetadata struct {
	FileID   string            `json:"file_id"`
	FileName string            `json:"file_name,omitempty"`
	FileURL  string            `json:"file_url,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Job is one trackable unit of pipeline work.
//
// ID, UserID and Action are immutable after creation. Status and the
// timestamps are mutated only through the status tracker. ChildIDs is
// append-only and is populated in a single write after every child has been
// durably created; FanoutComplete distinguishes "fan-out still in progress"
// from "fan-out complete with N children".
type Job struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Action         JobAction    `json:"action"`
	Status         JobStatus    `json:"status"`
	ParentID       string       `json:"parent_id,omitempty"`
	ChildIDs       []string     `json:"child_ids,omitempty"`
	FanoutComplete bool         `json:"fanout_complete"`
	FileID         string       `json:"file_id,omitempty"`
	FileMetadata   FileMetadata `json:"file_metadata"`
	BatchSize      int          `json:"batch_size,omitempty"`
	PageRange      *PageRange   `json:"page_range,omitempty"`
	ChunkIndex     *int         `json:"chunk_index,omitempty"`
	ChunkText      string       `json:"chunk_text,omitempty"`
	EnqueuedAt     time.Time    `json:"enqueued_at"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
}

// Chunk is a bounded slice of extracted document text with a stable,
// zero-based index within its (file, page range) scope.
type Chunk struct {
	Text         string
	FileMetadata FileMetadata
	PageRange    PageRange
	Index        int
}

// Key returns the human-readable deterministic identifier of the chunk,
// "fileID_start_end_chunk_index". Identical chunk coordinates always yield
// the same key, so repeated delivery overwrites rather than duplicates.
func (c *Chunk) Key() string {
	return ChunkKey(c.FileMetadata.FileID, c.PageRange, c.Index)
}

// ID returns the content-addressed storage ID of the chunk.
func (c *Chunk) ID() ID {
	return IDFromContent(c.Key())
}

// ChunkKey builds the deterministic chunk identifier for the given coordinates.
func ChunkKey(fileID string, pr PageRange, index int) string {
	return fileID + "_" + pr.String() + "_chunk_" + strconv.Itoa(index)
}
