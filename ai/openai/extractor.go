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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// GraphExtractor implements ai.GraphExtractor using OpenAI-compatible chat APIs.
type GraphExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// entity is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// relation is an internal type used for JSON unmarshaling.
type relation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// graphAnalysis is the wrapper structure for the LLM's JSON response.
type graphAnalysis struct {
	Entities  []entity   `json:"entities"`
	Relations []relation `json:"relations"`
}

// newGraphExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGraphExtractor(config *ai.Config) (*GraphExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat/extraction
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &GraphExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewGraphExtractor creates a new graph extractor using the provided configuration.
//
// Returns ai.GraphExtractor interface to enforce abstraction.
func NewGraphExtractor(config *ai.Config) (ai.GraphExtractor, error) {
	return newGraphExtractor(config)
}

// ExtractGraph extracts entities and relations from text using an LLM.
// Relations with unknown types or endpoints not present in the entity set
// are discarded.
func (e *GraphExtractor) ExtractGraph(ctx context.Context, text string) (*ai.ExtractedGraph, error) {
	// Build the system and user prompts
	systemPrompt := buildExtractionPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result graphAnalysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.ExtractedGraph{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		// Success
		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	graph := &ai.ExtractedGraph{
		Entities:  make([]ai.ExtractedEntity, 0, len(result.Entities)),
		Relations: make([]ai.ExtractedRelation, 0, len(result.Relations)),
	}

	names := make(map[string]bool, len(result.Entities))
	for _, ent := range result.Entities {
		name := strings.ToLower(strings.TrimSpace(ent.Name))
		if name == "" || names[name] {
			continue
		}
		names[name] = true
		graph.Entities = append(graph.Entities, ai.ExtractedEntity{
			Name: name,
			Type: strings.ReplaceAll(strings.ToLower(strings.TrimSpace(ent.Type)), " ", "_"),
		})
	}

	for _, rel := range result.Relations {
		source := strings.ToLower(strings.TrimSpace(rel.Source))
		target := strings.ToLower(strings.TrimSpace(rel.Target))
		relType := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(rel.Type)), " ", "_")

		// Keep only relations whose endpoints were extracted and whose
		// type is in the allowed vocabulary.
		if !names[source] || !names[target] {
			e.logger.Debug("dropping relation with unknown endpoint",
				"source", source, "target", target)
			continue
		}
		if !ai.ValidRelationType(relType) {
			e.logger.Debug("dropping relation with unknown type", "type", relType)
			continue
		}
		graph.Relations = append(graph.Relations, ai.ExtractedRelation{
			Source: source,
			Target: target,
			Type:   relType,
		})
	}

	e.logger.Debug("extracted graph",
		"entities", len(graph.Entities),
		"relations", len(graph.Relations))

	return graph, nil
}
