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


package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/storage"
)

const (
	// DefaultTopK bounds the number of vector hits when the request does
	// not specify one.
	DefaultTopK = 5

	// rechunkSize is the fixed piece size used to re-chunk a synchronous
	// response so the wire protocol is uniform regardless of upstream
	// streaming capability.
	rechunkSize = 512
)

// Frame is one wire message of the query stream.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// FrameSink receives frames in order. Send errors indicate the consumer is
// gone and stop the stream.
type FrameSink interface {
	Send(ctx context.Context, frame Frame) error
}

// FrameSinkFunc adapts a function to the FrameSink interface.
type FrameSinkFunc func(ctx context.Context, frame Frame) error

// Send calls the underlying function.
func (f FrameSinkFunc) Send(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// Request is one query invocation. The orchestrator holds no per-request
// state beyond the call. UserID is accepted for request attribution and
// logging; retrieval itself is not scoped per user.
type Request struct {
	Question string `json:"query"`
	UserID   string `json:"user_id,omitempty"`
	History  []Turn `json:"previous_messages,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
	Provider string `json:"model,omitempty"`
}

// Orchestrator runs retrieval-augmented generation over the vector store,
// the optional graph store and a set of generation providers.
type Orchestrator struct {
	embedder   ai.Embedder
	vectors    storage.VectorRepository
	graph      storage.GraphRepository
	generators map[ai.ProviderKind]ai.Generator
	topK       int
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTopK sets the default number of vector hits.
func WithTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k > 0 {
			o.topK = k
		}
		return nil
	}
}

// WithGraph attaches the graph store. The graph is an optional enhancer;
// without it every query runs with empty augmentation.
func WithGraph(graph storage.GraphRepository) Option {
	return func(o *Orchestrator) error {
		o.graph = graph
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a query orchestrator. generators maps provider
// kinds to their generation backends; requests resolve against it.
func NewOrchestrator(embedder ai.Embedder, vectors storage.VectorRepository, generators map[ai.ProviderKind]ai.Generator, opts ...Option) (*Orchestrator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if vectors == nil {
		return nil, ErrVectorsRequired
	}
	if len(generators) == 0 {
		return nil, ErrNoGenerator
	}

	o := &Orchestrator{
		embedder:   embedder,
		vectors:    vectors,
		generators: generators,
		topK:       DefaultTopK,
		logger:     slog.Default().With("component", "query-orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Providers returns the provider kinds this orchestrator can answer with.
func (o *Orchestrator) Providers() []ai.ProviderKind {
	kinds := make([]ai.ProviderKind, 0, len(o.generators))
	for kind := range o.generators {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Run executes one query, writing frames to sink in order: zero or more
// status frames, exactly one references frame, the token frames in
// generation order, and a terminal done frame. Hard failures produce a
// terminal error frame instead and are returned.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink FrameSink) error {
	if strings.TrimSpace(req.Question) == "" {
		return o.fail(ctx, sink, ErrEmptyQuestion)
	}

	kind, err := ai.ParseProviderKind(req.Provider)
	if err != nil {
		return o.fail(ctx, sink, err)
	}
	generator, ok := o.generators[kind]
	if !ok {
		return o.fail(ctx, sink, fmt.Errorf("%w: %s", ErrNoGenerator, kind))
	}

	topK := req.TopK
	if topK < 1 {
		topK = o.topK
	}

	o.logger.Debug("query accepted", "user", req.UserID, "model", kind, "top_k", topK)

	if err := sink.Send(ctx, Frame{Event: "status", Data: "searching documents"}); err != nil {
		return err
	}

	hits, err := o.search(ctx, req.Question, topK)
	if err != nil {
		return o.fail(ctx, sink, err)
	}

	references := make([]Reference, len(hits))
	contexts := make([]string, len(hits))
	for i, hit := range hits {
		references[i] = referenceFromHit(hit)
		contexts[i] = hit.Record.Text
	}

	graphContext, graphAugmented := o.augment(ctx, sink, req.Question)

	// References are emitted once, fully, before the first token.
	if err := sink.Send(ctx, Frame{Event: "references", Data: references}); err != nil {
		return err
	}

	messages := buildPrompt(req.Question, req.History, references, contexts, graphContext)

	if err := o.generate(ctx, generator, messages, sink); err != nil {
		return o.fail(ctx, sink, err)
	}

	return sink.Send(ctx, Frame{Event: "done", Data: map[string]any{
		"hits":            len(hits),
		"graph_augmented": graphAugmented,
	}})
}

func (o *Orchestrator) search(ctx context.Context, question string, topK int) ([]*storage.VectorHit, error) {
	vector, err := o.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}
	return o.vectors.Search(ctx, vector, topK)
}

// augment queries the graph store for entities mentioned in the question and
// renders their outgoing relations as context lines. The graph is strictly
// best-effort: any failure degrades to empty augmentation with a status
// note, never a request failure.
func (o *Orchestrator) augment(ctx context.Context, sink FrameSink, question string) (string, bool) {
	if o.graph == nil {
		return "", false
	}

	names := candidateNames(question)
	if len(names) == 0 {
		return "", false
	}

	entities, err := o.graph.FindEntitiesByName(ctx, names...)
	if err != nil {
		o.logger.Warn("graph lookup failed, continuing without augmentation", "err", err)
		sink.Send(ctx, Frame{Event: "status", Data: "knowledge graph unavailable"})
		return "", false
	}
	if len(entities) == 0 {
		return "", false
	}

	var lines []string
	for _, entity := range entities {
		relations, err := o.graph.RelationsForEntity(ctx, entity.ID)
		if err != nil {
			o.logger.Warn("graph traversal failed, continuing without augmentation", "err", err)
			sink.Send(ctx, Frame{Event: "status", Data: "knowledge graph unavailable"})
			return "", false
		}
		for _, relation := range relations {
			target, err := o.graph.GetEntity(ctx, relation.TargetID)
			if err != nil {
				continue
			}
			lines = append(lines, entity.Name+" "+relation.Type+" "+target.Name)
		}
	}
	if len(lines) == 0 {
		return "", false
	}

	o.logger.Debug("graph augmentation", "entities", len(entities), "facts", len(lines))
	return strings.Join(lines, "\n"), true
}

// generate streams tokens when the provider supports it; otherwise it runs
// synchronously and re-chunks the full response into fixed-size pieces so
// consumers see the same frame shape either way.
func (o *Orchestrator) generate(ctx context.Context, generator ai.Generator, messages []ai.Message, sink FrameSink) error {
	if generator.SupportsStreaming() {
		return generator.GenerateStream(ctx, messages, func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return sink.Send(ctx, Frame{Event: "token", Data: string(chunk)})
		})
	}

	response, err := generator.Generate(ctx, messages)
	if err != nil {
		return err
	}
	for start := 0; start < len(response); start += rechunkSize {
		end := start + rechunkSize
		if end > len(response) {
			end = len(response)
		}
		if err := sink.Send(ctx, Frame{Event: "token", Data: response[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, sink FrameSink, cause error) error {
	if err := sink.Send(ctx, Frame{Event: "error", Data: cause.Error()}); err != nil {
		o.logger.Debug("could not deliver error frame", "err", err)
	}
	return cause
}

// candidateNames extracts the lowercase words of the question that could
// name a graph entity.
func candidateNames(question string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if len(word) <= 3 || seen[word] {
			continue
		}
		seen[word] = true
		names = append(names, word)
	}
	return names
}
