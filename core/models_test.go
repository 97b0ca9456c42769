package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromContent("hello world")
		id2 := IDFromContent("hello world")
		assert.Equal(t, id1, id2)
	})

	t.Run("different content different ids", func(t *testing.T) {
		id1 := IDFromContent("hello world")
		id2 := IDFromContent("hello there")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty string valid", func(t *testing.T) {
		id := IDFromContent("")
		assert.NotZero(t, id)
	})
}

func TestJobStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to JobStatus
	}{
		{StatusQueued, StatusStarted},
		{StatusStarted, StatusFinished},
		{StatusStarted, StatusFailed},
		{StatusStarted, StatusRetrying},
		{StatusFailed, StatusRetrying},
		{StatusRetrying, StatusStarted},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to JobStatus
	}{
		{StatusQueued, StatusFinished},
		{StatusQueued, StatusFailed},
		{StatusQueued, StatusRetrying},
		{StatusFinished, StatusStarted},
		{StatusFinished, StatusRetrying},
		{StatusFinished, StatusFailed},
		{StatusFailed, StatusStarted},
		{StatusFailed, StatusFinished},
		{StatusRetrying, StatusFinished},
		{StatusRetrying, StatusFailed},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, StatusFinished.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusStarted.Terminal())
	assert.False(t, StatusRetrying.Terminal())
}

func TestPageRange(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		pr := PageRange{Start: 1, End: 3}
		assert.Equal(t, "1_3", pr.String())
		assert.Equal(t, 2, pr.Pages())
	})

	t.Run("round trip", func(t *testing.T) {
		pr, err := ParsePageRange("3_5")
		require.NoError(t, err)
		assert.Equal(t, PageRange{Start: 3, End: 5}, pr)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"", "3", "a_b", "3_", "_5", "5_3", "0_2"} {
			_, err := ParsePageRange(s)
			assert.ErrorIs(t, err, ErrInvalidPageRange, "input %q", s)
		}
	})

	t.Run("validity", func(t *testing.T) {
		assert.True(t, PageRange{Start: 1, End: 2}.Valid())
		assert.False(t, PageRange{Start: 0, End: 2}.Valid())
		assert.False(t, PageRange{Start: 2, End: 2}.Valid())
	})
}

func TestChunkKey(t *testing.T) {
	pr := PageRange{Start: 1, End: 3}
	key := ChunkKey("file-1", pr, 0)
	assert.Equal(t, "file-1_1_3_chunk_0", key)

	// Identical coordinates produce identical ids.
	chunk := &Chunk{
		Text:         "some text",
		FileMetadata: FileMetadata{FileID: "file-1"},
		PageRange:    pr,
		Index:        0,
	}
	other := &Chunk{
		Text:         "different text, same coordinates",
		FileMetadata: FileMetadata{FileID: "file-1"},
		PageRange:    pr,
		Index:        0,
	}
	assert.Equal(t, chunk.ID(), other.ID())
	assert.NotEqual(t, chunk.ID(), IDFromContent(ChunkKey("file-1", pr, 1)))
}
