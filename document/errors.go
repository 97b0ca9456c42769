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


package document

import "errors"

var (
	// ErrEmptyDownload indicates the remote file was fetched successfully
	// but contained zero bytes. This is a hard failure; an empty document
	// can never produce chunks.
	ErrEmptyDownload = errors.New("downloaded file is empty")

	// ErrDownloadFailed indicates the remote file could not be fetched.
	ErrDownloadFailed = errors.New("download failed")

	// ErrConversionFailed indicates the document bytes could not be parsed.
	ErrConversionFailed = errors.New("document conversion failed")

	// ErrInvalidMaxAttempts indicates retry was configured with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
