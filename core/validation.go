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


package core

import "fmt"

// ValidateJob validates a Job according to domain rules.
//
// Validation rules common to every action:
//   - UserID must not be empty
//   - Action must be a known action
//   - Status must be a known status
//   - FileMetadata.Extra must stay within MaxMetadataExtras
//
// Action-specific payload rules:
//   - ingest-split: FileID and FileMetadata.FileURL are required;
//     BatchSize must not be negative (zero means the pipeline default)
//   - convert-chunk: FileID and a valid PageRange are required
//   - vector-embed, graph-embed: FileID, a valid PageRange, a
//     zero-or-positive ChunkIndex and the chunk text are required
//
// NOT validated (populated by the store and the tracker):
//   - ID (assigned at insert when empty)
//   - timestamps
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if job.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingUserID)
	}
	if !ValidAction(job.Action) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidJob, ErrUnknownAction, job.Action)
	}
	if !ValidStatus(job.Status) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidJob, ErrUnknownStatus, job.Status)
	}
	if len(job.FileMetadata.Extra) > MaxMetadataExtras {
		return fmt.Errorf("%w: %w: %d", ErrInvalidJob, ErrTooManyMetadataExtras, len(job.FileMetadata.Extra))
	}

	switch job.Action {
	case ActionIngestSplit:
		if job.FileID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingFileID)
		}
		if job.FileMetadata.FileURL == "" {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingFileURL)
		}
		if job.BatchSize < 0 {
			return fmt.Errorf("%w: %w: %d", ErrInvalidJob, ErrInvalidBatchSize, job.BatchSize)
		}
	case ActionConvertChunk:
		if job.FileID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingFileID)
		}
		if err := validatePageRange(job.PageRange); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJob, err)
		}
	case ActionVectorEmbed, ActionGraphEmbed:
		if job.FileID == "" {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingFileID)
		}
		if err := validatePageRange(job.PageRange); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJob, err)
		}
		if job.ChunkIndex == nil {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingChunkIndex)
		}
		if *job.ChunkIndex < 0 {
			return fmt.Errorf("%w: %w: %d", ErrInvalidJob, ErrInvalidChunkIndex, *job.ChunkIndex)
		}
		if job.ChunkText == "" {
			return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingChunkText)
		}
	}

	return nil
}

func validatePageRange(pr *PageRange) error {
	if pr == nil {
		return ErrMissingPageRange
	}
	if !pr.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPageRange, pr)
	}
	return nil
}
