package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIterator_Batches(t *testing.T) {
	vectors := newTestIndex(t, 5)
	it := NewRecordIterator(vectors, 2)

	var sizes []int
	err := it.ForEach(context.Background(), func(records []*storage.VectorRecord) error {
		sizes = append(sizes, len(records))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestRecordIterator_EmptyIndex(t *testing.T) {
	vectors := newTestIndex(t, 0)
	it := NewRecordIterator(vectors, 2)

	called := false
	err := it.ForEach(context.Background(), func(records []*storage.VectorRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRecordIterator_StopsOnError(t *testing.T) {
	vectors := newTestIndex(t, 5)
	it := NewRecordIterator(vectors, 2)

	boom := errors.New("boom")
	batches := 0
	err := it.ForEach(context.Background(), func(records []*storage.VectorRecord) error {
		batches++
		if batches == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, batches)
}

func TestRecordIterator_CanceledContext(t *testing.T) {
	vectors := newTestIndex(t, 5)
	it := NewRecordIterator(vectors, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := it.ForEach(ctx, func(records []*storage.VectorRecord) error {
		t.Fatal("callback should not run with canceled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordIterator_DefaultBatchSize(t *testing.T) {
	vectors := newTestIndex(t, 3)
	it := NewRecordIterator(vectors, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)

	batches := 0
	err := it.ForEach(context.Background(), func(records []*storage.VectorRecord) error {
		batches++
		assert.Len(t, records, 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
}
