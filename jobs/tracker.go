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


package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// StatusTracker validates and applies job lifecycle transitions.
// All methods are safe for concurrent use; same-job updates are serialized by
// the underlying repository.
type StatusTracker struct {
	repo   storage.JobRepository
	logger *slog.Logger
}

// NewStatusTracker creates a tracker on top of the given repository.
func NewStatusTracker(repo storage.JobRepository) *StatusTracker {
	return &StatusTracker{
		repo:   repo,
		logger: slog.Default().With("component", "status-tracker"),
	}
}

// MarkStarted transitions a job from QUEUED (or RETRYING) to STARTED and
// records the start time. Exactly one concurrent caller wins; the rest
// observe storage.ErrInvalidTransition.
func (t *StatusTracker) MarkStarted(ctx context.Context, id string) (*core.Job, error) {
	now := time.Now().UTC()
	job, err := t.repo.UpdateStatus(ctx, id, core.StatusStarted, storage.StatusUpdate{
		StartedAt: &now,
	})
	if err != nil {
		t.logger.Debug("start transition rejected", "job", id, "err", err)
		return nil, err
	}
	t.logger.Info("job started", "job", id, "action", job.Action)
	return job, nil
}

// MarkFinished transitions a job from STARTED to FINISHED.
func (t *StatusTracker) MarkFinished(ctx context.Context, id string) (*core.Job, error) {
	now := time.Now().UTC()
	job, err := t.repo.UpdateStatus(ctx, id, core.StatusFinished, storage.StatusUpdate{
		CompletedAt: &now,
	})
	if err != nil {
		t.logger.Warn("finish transition rejected", "job", id, "err", err)
		return nil, err
	}
	t.logger.Info("job finished", "job", id, "action", job.Action,
		"duration", durationSince(job.StartedAt, now))
	return job, nil
}

// MarkFailed transitions a job from STARTED to FAILED, recording the error
// message for later inspection via the job endpoint.
func (t *StatusTracker) MarkFailed(ctx context.Context, id string, cause error) (*core.Job, error) {
	now := time.Now().UTC()
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	job, err := t.repo.UpdateStatus(ctx, id, core.StatusFailed, storage.StatusUpdate{
		CompletedAt:  &now,
		ErrorMessage: message,
	})
	if err != nil {
		t.logger.Warn("fail transition rejected", "job", id, "err", err)
		return nil, err
	}
	t.logger.Error("job failed", "job", id, "action", job.Action, "cause", message)
	return job, nil
}

// Retry marks a job RETRYING. Valid from STARTED or FAILED; the follow-up
// MarkStarted clears the previous run's completion state. Every re-entry is
// logged explicitly so retries are visible in the operational record.
func (t *StatusTracker) Retry(ctx context.Context, id string) (*core.Job, error) {
	job, err := t.repo.UpdateStatus(ctx, id, core.StatusRetrying, storage.StatusUpdate{})
	if err != nil {
		t.logger.Warn("retry transition rejected", "job", id, "err", err)
		return nil, err
	}
	t.logger.Warn("job re-entering pipeline", "job", id, "action", job.Action,
		"previousError", job.ErrorMessage)
	return job, nil
}

func durationSince(start *time.Time, end time.Time) time.Duration {
	if start == nil {
		return 0
	}
	return end.Sub(*start)
}
