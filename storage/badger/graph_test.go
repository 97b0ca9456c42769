package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraphRepo(t *testing.T) storage.GraphRepository {
	t.Helper()
	_, _, graphRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return graphRepo
}

func TestGraphRepositoryMergeEntities(t *testing.T) {
	repo := newTestGraphRepo(t)
	ctx := context.Background()

	aspirin := &storage.GraphEntity{Name: "aspirin", Type: "drug"}
	require.NoError(t, repo.MergeEntities(ctx, aspirin))
	require.NotZero(t, aspirin.ID)
	assert.Equal(t, core.IDFromContent("(drug,aspirin)"), aspirin.ID)

	t.Run("merge is idempotent", func(t *testing.T) {
		again := &storage.GraphEntity{Name: "aspirin", Type: "drug"}
		require.NoError(t, repo.MergeEntities(ctx, again))
		assert.Equal(t, aspirin.ID, again.ID)

		found, err := repo.FindEntitiesByName(ctx, "aspirin")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		found, err := repo.FindEntitiesByName(ctx, "Aspirin")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "aspirin", found[0].Name)
	})

	t.Run("get entity", func(t *testing.T) {
		got, err := repo.GetEntity(ctx, aspirin.ID)
		require.NoError(t, err)
		assert.Equal(t, "drug", got.Type)

		_, err = repo.GetEntity(ctx, core.ID(12345))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestGraphRepositoryMergeRelations(t *testing.T) {
	repo := newTestGraphRepo(t)
	ctx := context.Background()

	aspirin := &storage.GraphEntity{Name: "aspirin", Type: "drug"}
	headache := &storage.GraphEntity{Name: "headache", Type: "condition"}
	require.NoError(t, repo.MergeEntities(ctx, aspirin, headache))

	chunkKey := core.ChunkKey("file-1", core.PageRange{Start: 1, End: 3}, 0)
	relation := &storage.GraphRelation{
		SourceID: aspirin.ID,
		TargetID: headache.ID,
		Type:     "treats",
		ChunkKey: chunkKey,
	}
	require.NoError(t, repo.MergeRelations(ctx, relation))
	require.NotZero(t, relation.ID)

	t.Run("re-merge from the same chunk is idempotent", func(t *testing.T) {
		again := &storage.GraphRelation{
			SourceID: aspirin.ID,
			TargetID: headache.ID,
			Type:     "treats",
			ChunkKey: chunkKey,
		}
		require.NoError(t, repo.MergeRelations(ctx, again))

		relations, err := repo.RelationsForEntity(ctx, aspirin.ID)
		require.NoError(t, err)
		assert.Len(t, relations, 1)
	})

	t.Run("same relation from another chunk is distinct provenance", func(t *testing.T) {
		other := &storage.GraphRelation{
			SourceID: aspirin.ID,
			TargetID: headache.ID,
			Type:     "treats",
			ChunkKey: core.ChunkKey("file-1", core.PageRange{Start: 3, End: 5}, 1),
		}
		require.NoError(t, repo.MergeRelations(ctx, other))

		relations, err := repo.RelationsForEntity(ctx, aspirin.ID)
		require.NoError(t, err)
		assert.Len(t, relations, 2)
	})

	t.Run("no relations for unknown entity", func(t *testing.T) {
		relations, err := repo.RelationsForEntity(ctx, core.ID(999))
		require.NoError(t, err)
		assert.Empty(t, relations)
	})
}
