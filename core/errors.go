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

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrUnknownAction indicates an unrecognized job action.
	ErrUnknownAction = errors.New("unknown job action")

	// ErrUnknownStatus indicates an unrecognized job status.
	ErrUnknownStatus = errors.New("unknown job status")

	// ErrMissingUserID indicates the UserID field is empty.
	ErrMissingUserID = errors.New("user id is required")

	// ErrMissingFileID indicates the FileID field is empty.
	ErrMissingFileID = errors.New("file id is required")

	// ErrMissingFileURL indicates the FileURL field is empty.
	ErrMissingFileURL = errors.New("file url is required")

	// ErrMissingPageRange indicates the PageRange field is absent.
	ErrMissingPageRange = errors.New("page range is required")

	// ErrMissingChunkIndex indicates the ChunkIndex field is absent.
	ErrMissingChunkIndex = errors.New("chunk index is required")

	// ErrMissingChunkText indicates an embed job carries no chunk text.
	ErrMissingChunkText = errors.New("chunk text is required")

	// ErrInvalidPageRange indicates a malformed or empty page range.
	ErrInvalidPageRange = errors.New("invalid page range")

	// ErrInvalidChunkIndex indicates a negative chunk index.
	ErrInvalidChunkIndex = errors.New("chunk index must be zero or positive")

	// ErrTooManyMetadataExtras indicates the Extra map exceeds the bound.
	ErrTooManyMetadataExtras = errors.New("too many metadata extras")

	// ErrInvalidTotalPages indicates a page count below 1.
	ErrInvalidTotalPages = errors.New("total pages must be at least 1")

	// ErrInvalidBatchSize indicates a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)
