package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (storage.JobRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrStorageClosed)
	}
	return &JobRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *JobRepository) Close() error {
	return nil
}

// Insert validates and stores a new job record.
func (r *JobRepository) Insert(ctx context.Context, job *core.Job) (*core.Job, error) {
	if err := core.ValidateJob(job); err != nil {
		return nil, err
	}

	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = time.Now().UTC()
	}

	value, err := storage.MarshalJob(&stored)
	if err != nil {
		return nil, err
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(stored.ID), value); err != nil {
			return err
		}
		// Lineage index: children are discoverable from their parent id
		// even before the parent's child_ids is populated.
		if stored.ParentID != "" {
			return tx.Set(makeJobParentKey(stored.ParentID, stored.ID), []byte(stored.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// Get retrieves a job by ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateStatus atomically transitions a job to the given status.
//
// The read-validate-write runs inside a single optimistic transaction, so two
// racing updates to the same job serialize: the loser conflicts at commit and
// re-reads the winner's state before revalidating its transition.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status core.JobStatus, update storage.StatusUpdate) (*core.Job, error) {
	if !core.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStatus, status)
	}

	var updated *core.Job
	err := r.backend.Update(func(tx *badger.Txn) error {
		job, err := readJob(tx, id)
		if err != nil {
			return err
		}

		if !job.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s for job %s", storage.ErrInvalidTransition, job.Status, status, id)
		}

		from := job.Status
		job.Status = status

		switch status {
		case core.StatusStarted:
			if from == core.StatusRetrying {
				// Re-entry: a fresh run gets fresh timestamps and a clean slate.
				job.StartedAt = startedOrNow(update.StartedAt)
				job.CompletedAt = nil
				job.ErrorMessage = ""
			} else if job.StartedAt == nil {
				job.StartedAt = startedOrNow(update.StartedAt)
			}
		case core.StatusFinished:
			if job.CompletedAt == nil {
				job.CompletedAt = startedOrNow(update.CompletedAt)
			}
		case core.StatusFailed:
			if job.CompletedAt == nil {
				job.CompletedAt = startedOrNow(update.CompletedAt)
			}
			job.ErrorMessage = update.ErrorMessage
		}

		value, err := storage.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(makeJobKey(id), value); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendChildren records the full fan-out child set on a parent.
func (r *JobRepository) AppendChildren(ctx context.Context, parentID string, childIDs []string, fanoutComplete bool) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		parent, err := readJob(tx, parentID)
		if err != nil {
			return err
		}

		if parent.FanoutComplete {
			// Replay with the identical set is harmless under at-least-once
			// delivery; anything else would silently grow child_ids.
			if slices.Equal(parent.ChildIDs, childIDs) {
				return nil
			}
			return fmt.Errorf("%w: parent %s", storage.ErrFanoutComplete, parentID)
		}

		for _, childID := range childIDs {
			if !slices.Contains(parent.ChildIDs, childID) {
				parent.ChildIDs = append(parent.ChildIDs, childID)
			}
		}
		parent.FanoutComplete = fanoutComplete

		value, err := storage.MarshalJob(parent)
		if err != nil {
			return err
		}
		return tx.Set(makeJobKey(parentID), value)
	})
}

// ListByParent retrieves jobs spawned by the given parent, ordered by enqueue
// time.
func (r *JobRepository) ListByParent(ctx context.Context, parentID string) ([]*core.Job, error) {
	jobs := []*core.Job{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialJobParentKey(parentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var childID string
			err := iter.Item().Value(func(val []byte) error {
				childID = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			job, err := readJob(tx, childID)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *core.Job) int {
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return jobs, nil
}

func readJob(tx *badger.Txn, id string) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: job %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func startedOrNow(t *time.Time) *time.Time {
	if t != nil {
		return t
	}
	now := time.Now().UTC()
	return &now
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
