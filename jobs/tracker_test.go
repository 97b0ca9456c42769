package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T) (*StatusTracker, storage.JobRepository) {
	t.Helper()
	jobRepo, _, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewStatusTracker(jobRepo), jobRepo
}

func insertJob(t *testing.T, repo storage.JobRepository) *core.Job {
	t.Helper()
	job, err := repo.Insert(context.Background(), &core.Job{
		UserID: "user-1",
		Action: core.ActionIngestSplit,
		Status: core.StatusQueued,
		FileID: "file-1",
		FileMetadata: core.FileMetadata{
			FileID:  "file-1",
			FileURL: "http://example.com/file.pdf",
		},
	})
	require.NoError(t, err)
	return job
}

func TestTracker_HappyPath(t *testing.T) {
	tracker, repo := setupTracker(t)
	job := insertJob(t, repo)
	ctx := context.Background()

	started, err := tracker.MarkStarted(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusStarted, started.Status)
	require.NotNil(t, started.StartedAt)

	finished, err := tracker.MarkFinished(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFinished, finished.Status)
	require.NotNil(t, finished.CompletedAt)
	assert.Empty(t, finished.ErrorMessage)
}

func TestTracker_Failure(t *testing.T) {
	tracker, repo := setupTracker(t)
	job := insertJob(t, repo)
	ctx := context.Background()

	_, err := tracker.MarkStarted(ctx, job.ID)
	require.NoError(t, err)

	failed, err := tracker.MarkFailed(ctx, job.ID, errors.New("downloaded file is empty"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.Equal(t, "downloaded file is empty", failed.ErrorMessage)
	require.NotNil(t, failed.CompletedAt)
}

func TestTracker_FinishWithoutStartRejected(t *testing.T) {
	tracker, repo := setupTracker(t)
	job := insertJob(t, repo)

	_, err := tracker.MarkFinished(context.Background(), job.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestTracker_RetryReentry(t *testing.T) {
	tracker, repo := setupTracker(t)
	job := insertJob(t, repo)
	ctx := context.Background()

	_, err := tracker.MarkStarted(ctx, job.ID)
	require.NoError(t, err)
	_, err = tracker.MarkFailed(ctx, job.ID, errors.New("transient"))
	require.NoError(t, err)

	retrying, err := tracker.Retry(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRetrying, retrying.Status)

	// Re-entering STARTED clears the previous run's outcome
	restarted, err := tracker.MarkStarted(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusStarted, restarted.Status)
	assert.Nil(t, restarted.CompletedAt)
	assert.Empty(t, restarted.ErrorMessage)

	finished, err := tracker.MarkFinished(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFinished, finished.Status)
}

func TestTracker_TerminalStatesAreFinal(t *testing.T) {
	tracker, repo := setupTracker(t)
	job := insertJob(t, repo)
	ctx := context.Background()

	_, err := tracker.MarkStarted(ctx, job.ID)
	require.NoError(t, err)
	_, err = tracker.MarkFinished(ctx, job.ID)
	require.NoError(t, err)

	_, err = tracker.MarkStarted(ctx, job.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	_, err = tracker.MarkFailed(ctx, job.ID, errors.New("late"))
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	_, err = tracker.Retry(ctx, job.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestTracker_UnknownJob(t *testing.T) {
	tracker, _ := setupTracker(t)

	_, err := tracker.MarkStarted(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
