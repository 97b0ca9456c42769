package badger

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
//
// Search is a brute-force cosine scan over all stored records. That holds up
// well into the tens of thousands of chunks; an ANN index would slot in
// behind the same interface if it stopped holding up.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) (storage.VectorRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrStorageClosed)
	}
	return &VectorRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *VectorRepository) Close() error {
	return nil
}

// Upsert stores a record under its deterministic ID, overwriting any previous
// record with the same ID.
func (r *VectorRepository) Upsert(ctx context.Context, record *storage.VectorRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil vector record", storage.ErrSerializationFailed)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeVectorKey(record.ID)
		now := time.Now().UTC()

		stored := *record
		stored.InsertedAt = now
		stored.UpdatedAt = now

		// Preserve InsertedAt across overwrites so re-delivery is invisible.
		item, err := tx.Get(key)
		if err == nil {
			var existing *storage.VectorRecord
			err = item.Value(func(val []byte) error {
				existing, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			stored.InsertedAt = existing.InsertedAt
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		value, err := storage.MarshalVectorRecord(&stored)
		if err != nil {
			return err
		}
		return tx.Set(key, value)
	})
}

// Search returns up to topK records most similar to the query vector.
func (r *VectorRepository) Search(ctx context.Context, vector []float32, topK int) ([]*storage.VectorHit, error) {
	if topK <= 0 {
		return []*storage.VectorHit{}, nil
	}

	var hits []*storage.VectorHit
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *storage.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil || len(record.Vector) == 0 {
				continue
			}

			score := cosineSimilarity(vector, record.Vector)
			hits = append(hits, &storage.VectorHit{Record: record, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b *storage.VectorHit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// List returns every stored record.
func (r *VectorRepository) List(ctx context.Context) ([]*storage.VectorRecord, error) {
	var records []*storage.VectorRecord
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *storage.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of stored records.
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
