package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
)

// Built-in excerpts so the index can be seeded without any input file.
var excerpts = []string{
	"Aspirin is commonly used to treat headaches and reduce fever.",
	"The committee approved the infrastructure budget for the fiscal year.",
	"Patients with hypertension should monitor their blood pressure daily.",
	"The lighthouse on the northern shore was decommissioned in 1987.",
	"Quarterly revenue grew by twelve percent compared to the prior year.",
	"Ibuprofen belongs to the class of nonsteroidal anti-inflammatory drugs.",
	"The research station records ocean temperature at hourly intervals.",
	"Employees must complete safety training before operating the equipment.",
	"The ancient aqueduct carried water across the valley for six centuries.",
	"Insulin regulates blood glucose levels in patients with diabetes.",
	"The annual report outlines the company's environmental commitments.",
	"Migraines are often accompanied by sensitivity to light and sound.",
	"The bridge inspection revealed corrosion in two support cables.",
	"Vaccination schedules vary by age group and regional guidelines.",
	"The observatory detected a supernova in a neighboring galaxy.",
	"Contract negotiations concluded with a three-year extension.",
	"Penicillin was the first antibiotic discovered from mold.",
	"The harbor master logs every vessel arriving before dawn.",
	"Physical therapy is recommended after knee replacement surgery.",
	"The archive preserves manuscripts dating back to the twelfth century.",
}

var (
	dbPath         = flag.String("db", "./docpipe_db", "path to BadgerDB database directory")
	seedFileName   = flag.String("file", "", "optional file with one excerpt per line")
	embeddingHost  = flag.String("embedding-host", "http://localhost:11434/v1", "embedding service host URL")
	embeddingModel = flag.String("embedding-model", "embeddinggemma", "embedding model name")
	fileID         = flag.String("file-id", "seed-corpus", "file id recorded on seeded chunks")
)

const seedBatchSize = 5

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// seedBatched embeds excerpts in batches and upserts one vector record per
// excerpt. Each excerpt becomes its own single-page chunk.
func seedBatched(ctx context.Context, vectors storage.VectorRepository, embedder ai.Embedder, source iter.Seq[string], batchSize int) (int, error) {
	batch := make([]string, 0, batchSize)
	index := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		embeddings, err := embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return err
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
		}

		for i, text := range batch {
			pr := core.PageRange{Start: index + 1, End: index + 2}
			key := core.ChunkKey(*fileID, pr, index)
			record := &storage.VectorRecord{
				ID:         core.IDFromContent(key),
				Key:        key,
				Text:       text,
				Vector:     embeddings[i],
				FileID:     *fileID,
				FileName:   *fileID + ".txt",
				PageRange:  pr.String(),
				ChunkIndex: index,
			}
			if err := vectors.Upsert(ctx, record); err != nil {
				return err
			}
			index++
		}
		batch = batch[:0]
		return nil
	}

	for line := range source {
		if line == "" {
			continue
		}
		batch = append(batch, line)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return index, err
			}
		}
	}
	if err := flush(); err != nil {
		return index, err
	}

	return index, nil
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

	ctx := context.Background()

	var source iter.Seq[string]
	if *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(excerpts)
	}

	seeded, err := seedBatched(ctx, vectors, embedder, source, seedBatchSize)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Seeded %d chunks into %s\n", seeded, *dbPath)
}
