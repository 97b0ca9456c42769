package storage

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/core"
)

// StatusUpdate carries the mutable fields of one job status transition.
// Zero-value fields are left untouched by the repository.
type StatusUpdate struct {
	// StartedAt, when non-nil, records when stage execution began.
	// It is set at most once per run; a RETRYING -> STARTED re-entry
	// overwrites it and clears CompletedAt and ErrorMessage.
	StartedAt *time.Time

	// CompletedAt, when non-nil, records when the job reached a terminal state.
	CompletedAt *time.Time

	// ErrorMessage is recorded only when the new status is FAILED.
	ErrorMessage string
}

// JobRepository provides persistence for pipeline jobs.
type JobRepository interface {
	// Insert validates and stores a new job record.
	// Jobs with an empty ID are assigned a generated one; EnqueuedAt is set
	// if zero. Returns the stored job.
	// Returns core.ErrInvalidJob if required fields for the action are missing.
	Insert(ctx context.Context, job *core.Job) (*core.Job, error)

	// Get retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	Get(ctx context.Context, id string) (*core.Job, error)

	// UpdateStatus atomically transitions a job to the given status.
	// It is the only mutator of a job's mutable fields. Concurrent updates to
	// the same job are serialized; an illegal transition returns
	// ErrInvalidTransition and leaves the record untouched.
	// Returns the updated job, or ErrNotFound if the id is unknown.
	UpdateStatus(ctx context.Context, id string, status core.JobStatus, update StatusUpdate) (*core.Job, error)

	// AppendChildren records the full set of fan-out children on a parent,
	// called exactly once after every child has been durably inserted.
	// Replaying the call with the identical child set is a no-op; calling it
	// again with a different set after fan-out completed returns
	// ErrFanoutComplete.
	AppendChildren(ctx context.Context, parentID string, childIDs []string, fanoutComplete bool) error

	// ListByParent retrieves the jobs spawned by the given parent, ordered by
	// enqueue time. Returns an empty slice when the parent has no children.
	ListByParent(ctx context.Context, parentID string) ([]*core.Job, error)

	// Close releases repository resources.
	Close() error
}

// VectorRecord is one embedded chunk stored in the vector index.
//
// PageRange carries the wire form "start_end"; consumers normalize it back to
// a pair and must tolerate malformed values.
type VectorRecord struct {
	ID         core.ID   `json:"id"`
	Key        string    `json:"key"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	FileID     string    `json:"file_id"`
	FileName   string    `json:"file_name,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	PageRange  string    `json:"page_range"`
	ChunkIndex int       `json:"chunk_index"`
	InsertedAt time.Time `json:"inserted_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VectorHit is one similarity match from the vector index.
type VectorHit struct {
	Record *VectorRecord
	Score  float32
}

// VectorRepository provides idempotent storage and similarity search for
// embedded chunks.
type VectorRepository interface {
	// Upsert stores a record under its deterministic ID, overwriting any
	// previous record with the same ID. InsertedAt is preserved across
	// overwrites.
	Upsert(ctx context.Context, record *VectorRecord) error

	// Search returns up to topK records most similar to the query vector,
	// ordered by cosine similarity descending.
	Search(ctx context.Context, vector []float32, topK int) ([]*VectorHit, error)

	// List returns every stored record. Used by maintenance operations
	// that reprocess the whole index.
	List(ctx context.Context) ([]*VectorRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases repository resources.
	Close() error
}

// GraphEntity is a node in the knowledge graph, identified by the
// content-addressed ID of its (type, name) tuple.
type GraphEntity struct {
	ID         core.ID   `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	InsertedAt time.Time `json:"inserted_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tuple returns the "(Type,Name)" form used for deterministic entity IDs.
func (e *GraphEntity) Tuple() string {
	return "(" + e.Type + "," + e.Name + ")"
}

// GraphRelation is a directed edge between two entities with chunk provenance.
// Its ID is content-addressed over (source, type, target, chunk key), so
// re-merging the same extraction is idempotent.
type GraphRelation struct {
	ID         core.ID   `json:"id"`
	SourceID   core.ID   `json:"source_id"`
	TargetID   core.ID   `json:"target_id"`
	Type       string    `json:"type"`
	ChunkKey   string    `json:"chunk_key"`
	InsertedAt time.Time `json:"inserted_at"`
}

// GraphRepository provides idempotent merge and lookup over extracted
// entities and relations.
type GraphRepository interface {
	// MergeEntities upserts entities by their content-addressed IDs.
	// InsertedAt is preserved for entities that already exist.
	MergeEntities(ctx context.Context, entities ...*GraphEntity) error

	// MergeRelations upserts relations by their content-addressed IDs.
	MergeRelations(ctx context.Context, relations ...*GraphRelation) error

	// FindEntitiesByName returns entities whose name matches one of the given
	// names, case-insensitively.
	FindEntitiesByName(ctx context.Context, names ...string) ([]*GraphEntity, error)

	// RelationsForEntity returns relations whose source is the given entity.
	RelationsForEntity(ctx context.Context, entityID core.ID) ([]*GraphRelation, error)

	// GetEntity retrieves an entity by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*GraphEntity, error)

	// Close releases repository resources.
	Close() error
}
