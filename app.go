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


package docpipe

import (
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mistral"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/document"
	"github.com/poiesic/docpipe/jobs"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/query"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/server"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
)

// App owns every collaborator of the document pipeline: the storage
// backend, the AI provider, the four-lane dispatcher with its stage
// handlers, the inline ingestor, the query orchestrator and the HTTP
// server. All collaborators are constructed eagerly so a misconfigured
// deployment fails at startup, not on the first request.
type App struct {
	backend    *badger.Backend
	jobRepo    storage.JobRepository
	vectorRepo storage.VectorRepository
	graphRepo  storage.GraphRepository
	provider   ai.Provider
	dispatcher *queue.Dispatcher
	server     *server.Server
	logger     *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	aiConfig      *ai.Config
	mistralAPIKey string
	mistralModel  string
	batchSize     int
	concurrency   int
	extractorRPM  int
	taskTimeout   time.Duration
	topK          int
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(cfg *ai.Config) AppOption {
	return func(o *appOptions) {
		o.aiConfig = cfg
	}
}

// WithMistralGenerator enables the alternate answer generator. The
// model may be empty to use the provider default.
func WithMistralGenerator(apiKey, model string) AppOption {
	return func(o *appOptions) {
		o.mistralAPIKey = apiKey
		o.mistralModel = model
	}
}

// WithBatchSize sets the page-batch size used when splitting an
// ingest job into convert children.
func WithBatchSize(n int) AppOption {
	return func(o *appOptions) {
		o.batchSize = n
	}
}

// WithConcurrency sets the worker count per lane.
func WithConcurrency(n int) AppOption {
	return func(o *appOptions) {
		o.concurrency = n
	}
}

// WithExtractorRPM caps graph extraction calls per minute across the
// graph lane and the inline path. Zero disables throttling.
func WithExtractorRPM(rpm int) AppOption {
	return func(o *appOptions) {
		o.extractorRPM = rpm
	}
}

// WithTaskTimeout sets the per-task deadline applied by every lane.
func WithTaskTimeout(d time.Duration) AppOption {
	return func(o *appOptions) {
		o.taskTimeout = d
	}
}

// WithTopK sets the default number of excerpts retrieved per query.
func WithTopK(k int) AppOption {
	return func(o *appOptions) {
		o.topK = k
	}
}

// NewApp opens the storage backend at dataDir and wires the full
// pipeline. The caller owns the returned App and must Close it.
func NewApp(dataDir string, opts ...AppOption) (*App, error) {
	options := &appOptions{
		aiConfig:     ai.DefaultConfig(),
		batchSize:    pipeline.DefaultBatchSize,
		concurrency:  4,
		extractorRPM: pipeline.DefaultExtractorRPM,
		taskTimeout:  queue.DefaultTaskTimeout,
		topK:         query.DefaultTopK,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(dataDir, false)
	if err != nil {
		return nil, err
	}

	jobRepo, err := badger.NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectorRepo, err := badger.NewVectorRepository(backend)
	if err != nil {
		jobRepo.Close()
		backend.Close()
		return nil, err
	}

	graphRepo, err := badger.NewGraphRepository(backend)
	if err != nil {
		vectorRepo.Close()
		jobRepo.Close()
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		graphRepo.Close()
		vectorRepo.Close()
		jobRepo.Close()
		backend.Close()
		return nil, err
	}

	app := &App{
		backend:    backend,
		jobRepo:    jobRepo,
		vectorRepo: vectorRepo,
		graphRepo:  graphRepo,
		provider:   provider,
		logger:     slog.Default().With("component", "app"),
	}

	if err := app.wire(options); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// wire builds the processing graph on top of the opened repositories.
func (a *App) wire(options *appOptions) error {
	fetcher := document.NewFetcher()
	converter := document.NewPDFConverter()
	splitter := document.NewSplitter()
	throttle := pipeline.NewThrottle(options.extractorRPM)

	dispatcher, err := queue.NewDispatcher(queue.WithTaskTimeout(options.taskTimeout))
	if err != nil {
		return err
	}
	a.dispatcher = dispatcher

	tracker := jobs.NewStatusTracker(a.jobRepo)
	driver, err := pipeline.NewDriver(tracker, a.jobRepo, dispatcher)
	if err != nil {
		return err
	}

	ingestStage, err := pipeline.NewIngestStage(fetcher, converter, options.batchSize)
	if err != nil {
		return err
	}
	convertStage, err := pipeline.NewConvertStage(fetcher, converter, splitter)
	if err != nil {
		return err
	}
	vectorStage, err := pipeline.NewVectorStage(a.provider.Embedder(), a.vectorRepo)
	if err != nil {
		return err
	}
	graphStage, err := pipeline.NewGraphStage(a.provider.GraphExtractor(), a.graphRepo, throttle)
	if err != nil {
		return err
	}

	lanes := []struct {
		name  string
		stage pipeline.Stage
	}{
		{queue.LaneIngest, ingestStage},
		{queue.LaneConvert, convertStage},
		{queue.LaneVector, vectorStage},
		{queue.LaneGraph, graphStage},
	}
	for _, lane := range lanes {
		if err := dispatcher.RegisterLane(lane.name, driver.Handler(lane.stage), options.concurrency); err != nil {
			return err
		}
	}

	inline, err := pipeline.NewInlineIngestor(fetcher, converter, splitter,
		a.provider, a.vectorRepo, a.graphRepo, throttle, options.batchSize)
	if err != nil {
		return err
	}

	generators := map[ai.ProviderKind]ai.Generator{
		ai.ProviderOpenAI: a.provider.Generator(),
	}
	if options.mistralAPIKey != "" {
		gen, err := mistral.NewGenerator(options.mistralAPIKey, options.mistralModel)
		if err != nil {
			return err
		}
		generators[ai.ProviderMistral] = gen
	}

	orchestrator, err := query.NewOrchestrator(a.provider.Embedder(), a.vectorRepo, generators,
		query.WithGraph(a.graphRepo),
		query.WithTopK(options.topK))
	if err != nil {
		return err
	}

	a.server = server.NewServer(a.jobRepo, a.vectorRepo, a.graphRepo, dispatcher, inline, orchestrator)
	return nil
}

// Run serves HTTP on addr and blocks until the listener fails.
func (a *App) Run(addr string) error {
	return a.server.Run(addr)
}

// Server returns the HTTP surface, useful for tests.
func (a *App) Server() *server.Server {
	return a.server
}

// JobRepository returns the job store.
func (a *App) JobRepository() storage.JobRepository {
	return a.jobRepo
}

// VectorRepository returns the vector store.
func (a *App) VectorRepository() storage.VectorRepository {
	return a.vectorRepo
}

// GraphRepository returns the graph store.
func (a *App) GraphRepository() storage.GraphRepository {
	return a.graphRepo
}

// Close drains in-flight work and releases every resource. Safe to
// call after a partial startup failure.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Drain()
	}

	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}

	if err := a.graphRepo.Close(); err != nil {
		a.logger.Error("error closing graph repository", "err", err)
		return err
	}
	if err := a.vectorRepo.Close(); err != nil {
		a.logger.Error("error closing vector repository", "err", err)
		return err
	}
	if err := a.jobRepo.Close(); err != nil {
		a.logger.Error("error closing job repository", "err", err)
		return err
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
