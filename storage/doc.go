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


// Package storage provides the storage abstraction layer for docpipe.
//
// This package defines repository interfaces that decouple storage
// implementation from the pipeline and query orchestrator. Three repositories
// exist, one per persisted concern:
//
//   - JobRepository: the durable record of every unit of pipeline work and
//     its lineage. It is the only mutator of a job's mutable fields and
//     serializes concurrent updates to the same job.
//   - VectorRepository: the vector index. Records are keyed by a deterministic
//     chunk identifier so that re-delivery of the same unit overwrites rather
//     than duplicates.
//   - GraphRepository: entities and relations extracted from chunks, merged
//     idempotently under content-addressed IDs.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// constructors to enforce abstraction and enable multiple storage backend
// implementations:
//
//	repo, err := badger.NewJobRepository(backend)  // returns storage.JobRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines. Updates to different jobs never contend;
// updates to the same job are linearized by the backend's optimistic
// transactions.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support.
package storage
