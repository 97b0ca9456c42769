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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/reembed"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docpipe"
)

func main() {
	// Optional .env for local development; absence is not an error
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docpipe",
		Usage: "Document ingestion and retrieval-augmented query service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingestion and query HTTP service",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
						EnvVars:  []string{"DOCPIPE_DB"},
					},
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "HTTP listen address",
						Value:   ":8080",
						EnvVars: []string{"DOCPIPE_ADDR"},
					},
					&cli.StringFlag{
						Name:    "ai-host",
						Usage:   "OpenAI-compatible service host URL shared by all AI services",
						EnvVars: []string{"DOCPIPE_AI_HOST"},
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service host URL (overrides ai-host)",
						EnvVars: []string{"DOCPIPE_EMBEDDING_HOST"},
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
						EnvVars:  []string{"DOCPIPE_EMBEDDING_MODEL"},
					},
					&cli.StringFlag{
						Name:    "extractor-host",
						Usage:   "Graph extraction service host URL (overrides ai-host)",
						EnvVars: []string{"DOCPIPE_EXTRACTOR_HOST"},
					},
					&cli.StringFlag{
						Name:     "extractor-model",
						Usage:    "Graph extraction model name",
						Required: true,
						EnvVars:  []string{"DOCPIPE_EXTRACTOR_MODEL"},
					},
					&cli.StringFlag{
						Name:    "generator-host",
						Usage:   "Answer generation service host URL (overrides ai-host)",
						EnvVars: []string{"DOCPIPE_GENERATOR_HOST"},
					},
					&cli.StringFlag{
						Name:     "generator-model",
						Usage:    "Answer generation model name",
						Required: true,
						EnvVars:  []string{"DOCPIPE_GENERATOR_MODEL"},
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "API key for the OpenAI-compatible services",
						EnvVars: []string{"DOCPIPE_API_KEY", "OPENAI_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "mistral-api-key",
						Usage:   "API key enabling the Mistral answer generator",
						EnvVars: []string{"MISTRAL_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "mistral-model",
						Usage:   "Mistral model name",
						EnvVars: []string{"DOCPIPE_MISTRAL_MODEL"},
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Pages per convert batch",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Worker count per processing lane",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "extractor-rpm",
						Usage: "Graph extraction calls per minute (0 disables throttling)",
						Value: 15,
					},
					&cli.DurationFlag{
						Name:  "task-timeout",
						Usage: "Per-task deadline applied by every lane",
						Value: 10 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Default number of excerpts retrieved per query",
						Value: 5,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings for every stored chunk",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "API key for the embedding service",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "reextract-graph",
				Usage:  "Re-run knowledge graph extraction over every stored chunk",
				Action: reextractGraphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "extractor-host",
						Usage: "Graph extraction service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "extractor-model",
						Usage:    "Graph extraction model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "API key for the extraction service",
					},
					&cli.IntFlag{
						Name:  "extractor-rpm",
						Usage: "Extraction calls per minute (0 disables throttling)",
						Value: 15,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	vectors, err := badger.NewVectorRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer vectors.Close()

	aiOpts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	}
	if key := c.String("api-key"); key != "" {
		aiOpts = append(aiOpts, ai.WithAPIKey(key))
	}
	aiConfig := ai.NewConfig(aiOpts...)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	reembedder, err := reembed.NewReembedder(vectors, embedder, config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n\n", c.String("embedding-model"))

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func reextractGraphCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	vectors, err := badger.NewVectorRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer vectors.Close()

	graph, err := badger.NewGraphRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer graph.Close()

	aiOpts := []ai.ConfigOption{
		ai.WithExtractorHost(c.String("extractor-host")),
		ai.WithExtractorModel(c.String("extractor-model")),
	}
	if key := c.String("api-key"); key != "" {
		aiOpts = append(aiOpts, ai.WithAPIKey(key))
	}
	aiConfig := ai.NewConfig(aiOpts...)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	extractor, err := openai.NewGraphExtractor(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	config := &reembed.Config{
		BatchSize:      reembed.DefaultBatchSize,
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	throttle := pipeline.NewThrottle(c.Int("extractor-rpm"))
	reextractor, err := reembed.NewGraphReextractor(vectors, graph, extractor, throttle, config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Extractor host: %s\n", c.String("extractor-host"))
	fmt.Fprintf(os.Stderr, "Extractor model: %s\n\n", c.String("extractor-model"))

	if err := reextractor.Run(ctx); err != nil {
		return fmt.Errorf("graph re-extraction failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	aiOpts := []ai.ConfigOption{
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorModel(c.String("extractor-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	}
	if host := c.String("ai-host"); host != "" {
		aiOpts = append(aiOpts, ai.WithHost(host))
	}
	if host := c.String("embedding-host"); host != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingHost(host))
	}
	if host := c.String("extractor-host"); host != "" {
		aiOpts = append(aiOpts, ai.WithExtractorHost(host))
	}
	if host := c.String("generator-host"); host != "" {
		aiOpts = append(aiOpts, ai.WithGeneratorHost(host))
	}
	if key := c.String("api-key"); key != "" {
		aiOpts = append(aiOpts, ai.WithAPIKey(key))
	}

	aiConfig := ai.NewConfig(aiOpts...)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	appOpts := []docpipe.AppOption{
		docpipe.WithAIConfig(aiConfig),
		docpipe.WithBatchSize(c.Int("batch-size")),
		docpipe.WithConcurrency(c.Int("concurrency")),
		docpipe.WithExtractorRPM(c.Int("extractor-rpm")),
		docpipe.WithTaskTimeout(c.Duration("task-timeout")),
		docpipe.WithTopK(c.Int("top-k")),
	}
	if key := c.String("mistral-api-key"); key != "" {
		appOpts = append(appOpts, docpipe.WithMistralGenerator(key, c.String("mistral-model")))
	}

	pipe, err := docpipe.NewApp(c.String("db"), appOpts...)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer pipe.Close()

	return pipe.Run(c.String("addr"))
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
