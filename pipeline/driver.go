// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/jobs"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage"
)

// Fanout is one child job a stage wants created and dispatched, together
// with the lane that should execute it.
type Fanout struct {
	Job  *core.Job
	Lane string
}

// Stage is the transform half of a worker. Execute receives the job after it
// was marked STARTED and returns the fan-out children to create, or an error
// that fails the job.
type Stage interface {
	Execute(ctx context.Context, job *core.Job) ([]Fanout, error)
}

// Driver wraps a Stage with the shared four-phase worker contract:
//
//  1. mark the job STARTED, failing fast if the id is unknown
//  2. run the stage transform
//  3. create all children QUEUED, record them on the parent with
//     fan-out complete, then dispatch one unit per child
//  4. mark the job FINISHED; on any failure mark it FAILED with the
//     captured message and re-surface the error to the lane
type Driver struct {
	tracker    *jobs.StatusTracker
	repo       storage.JobRepository
	dispatcher *queue.Dispatcher
	logger     *slog.Logger
}

// NewDriver creates a driver over the given collaborators.
func NewDriver(tracker *jobs.StatusTracker, repo storage.JobRepository, dispatcher *queue.Dispatcher) (*Driver, error) {
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	return &Driver{
		tracker:    tracker,
		repo:       repo,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "stage-driver"),
	}, nil
}

// Handler returns a queue.Handler that runs the stage under the four-phase
// contract. The same handler is safe for concurrent invocations on
// different jobs.
func (d *Driver) Handler(stage Stage) queue.Handler {
	return func(ctx context.Context, job *core.Job) error {
		started, err := d.tracker.MarkStarted(ctx, job.ID)
		if err != nil {
			// Unknown id or illegal transition: an orchestration bug or a
			// duplicate delivery losing the start race. Do not proceed.
			return err
		}

		children, err := stage.Execute(ctx, started)
		if err != nil {
			return d.fail(ctx, started.ID, err)
		}

		if len(children) > 0 {
			if err := d.fanout(ctx, started, children); err != nil {
				return d.fail(ctx, started.ID, err)
			}
		}

		if _, err := d.tracker.MarkFinished(ctx, started.ID); err != nil {
			return err
		}
		return nil
	}
}

// fanout creates every child QUEUED, seals the parent's child set, then
// dispatches. Creation strictly precedes dispatch so a reader never sees a
// running child missing from its parent.
func (d *Driver) fanout(ctx context.Context, parent *core.Job, children []Fanout) error {
	childIDs := make([]string, 0, len(children))
	for i := range children {
		children[i].Job.ParentID = parent.ID
		children[i].Job.Status = core.StatusQueued

		inserted, err := d.repo.Insert(ctx, children[i].Job)
		if err != nil {
			return err
		}
		children[i].Job = inserted
		childIDs = append(childIDs, inserted.ID)
	}

	if err := d.repo.AppendChildren(ctx, parent.ID, childIDs, true); err != nil {
		return err
	}

	for _, child := range children {
		if err := d.dispatcher.Enqueue(ctx, child.Lane, child.Job); err != nil {
			return err
		}
	}

	d.logger.Debug("fan-out dispatched",
		"parent", parent.ID,
		"action", parent.Action,
		"children", len(children))
	return nil
}

func (d *Driver) fail(ctx context.Context, id string, cause error) error {
	if _, markErr := d.tracker.MarkFailed(ctx, id, cause); markErr != nil {
		d.logger.Error("failed to record job failure", "job", id, "err", markErr)
	}
	return cause
}
