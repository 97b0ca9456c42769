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


package reembed

import (
	"context"

	"github.com/poiesic/docpipe/storage"
)

// DefaultBatchSize is the default number of records per batch.
const DefaultBatchSize = 100

// RecordIterator walks every stored vector record in batches.
type RecordIterator struct {
	vectors   storage.VectorRepository
	batchSize int
}

// NewRecordIterator creates an iterator over the whole vector index.
// batchSize must be > 0, otherwise DefaultBatchSize is used.
func NewRecordIterator(vectors storage.VectorRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{
		vectors:   vectors,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of records. Iteration stops on the first
// error from fn. Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*storage.VectorRecord) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := it.vectors.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := i + it.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := fn(records[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}
