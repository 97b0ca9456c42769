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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// Stored values are encoded as JSON. Job records cross the HTTP boundary
// verbatim, so a single encoding on both sides avoids codec drift.

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	var job core.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(record *VectorRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
func UnmarshalVectorRecord(data []byte) (*VectorRecord, error) {
	var record VectorRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalGraphEntity serializes a GraphEntity to bytes.
func MarshalGraphEntity(entity *GraphEntity) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalGraphEntity deserializes a GraphEntity from bytes.
func UnmarshalGraphEntity(data []byte) (*GraphEntity, error) {
	var entity GraphEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entity, nil
}

// MarshalGraphRelation serializes a GraphRelation to bytes.
func MarshalGraphRelation(relation *GraphRelation) ([]byte, error) {
	data, err := json.Marshal(relation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalGraphRelation deserializes a GraphRelation from bytes.
func UnmarshalGraphRelation(data []byte) (*GraphRelation, error) {
	var relation GraphRelation
	if err := json.Unmarshal(data, &relation); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &relation, nil
}
