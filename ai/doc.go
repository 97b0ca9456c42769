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


// Package ai defines the AI collaborator interfaces used by the pipeline and
// the query orchestrator: text embedding, entity/relation extraction, and
// chat generation with optional token streaming.
//
// The orchestrator treats every implementation as an opaque, possibly slow,
// possibly failing remote call. Concrete implementations live in subpackages
// (openai for any OpenAI-compatible endpoint, mistral for the Mistral API,
// mock for tests); which generation backend serves a request is resolved once
// at request entry from an explicit ProviderKind, never by sniffing model
// name strings at call time.
package ai
