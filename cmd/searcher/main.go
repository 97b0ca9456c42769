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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/storage/badger"
)

var (
	dbPath         = flag.String("db", "./docpipe_db", "path to BadgerDB database directory")
	embeddingHost  = flag.String("embedding-host", "http://localhost:11434/v1", "embedding service host URL")
	embeddingModel = flag.String("embedding-model", "embeddinggemma", "embedding model name")
	topK           = flag.Int("top-k", 5, "number of hits to return")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	flag.Parse()

	backend, err := badger.OpenBackend(*dbPath, false)
	if err != nil {
		panic(err)
	}
	defer backend.Close()

	vectors, err := badger.NewVectorRepository(backend)
	if err != nil {
		panic(err)
	}

	embedder, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(*embeddingHost),
		ai.WithEmbeddingModel(*embeddingModel),
	))
	if err != nil {
		panic(err)
	}

	question := "lantern"
	if flag.NArg() > 0 {
		question = strings.Join(flag.Args(), " ")
	}

	ctx := context.Background()
	vector, err := embedder.EmbedText(ctx, question)
	if err != nil {
		panic(err)
	}

	hits, err := vectors.Search(ctx, vector, *topK)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(hits))
	for i, hit := range hits {
		name := hit.Record.FileName
		if name == "" {
			name = hit.Record.FileID
		}
		fmt.Printf("%d: '%s' (%s pages %s)[%0.3f]\n",
			i, hit.Record.Text, name, hit.Record.PageRange, hit.Score)
	}
}
