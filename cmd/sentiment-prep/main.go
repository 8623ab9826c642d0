// sentiment-prep runs the data-preparation pipeline end to end: fetch (or
// read) a labeled review corpus, split it, build the vocabulary from the
// training split, numericalize, optionally align pre-trained GloVe vectors,
// and stream one epoch of length-bucketed batches, reporting padding
// efficiency.
//
// Example:
//
//	sentiment-prep -repo stanfordnlp/imdb -vocab-size 25000 -batch-size 64
//	sentiment-prep -data train.parquet -embeddings glove.6B.100d.txt -dim 100
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/go-sentiment/corpus"
	"github.com/gomlx/go-sentiment/embeddings"
	"github.com/gomlx/go-sentiment/hub"
	"github.com/gomlx/go-sentiment/sampler"
	"github.com/gomlx/go-sentiment/tokenizers/words"
	"k8s.io/klog/v2"
)

var (
	flagRepo      = flag.String("repo", "", "HuggingFace dataset repository id (e.g. \"stanfordnlp/imdb\"); its train split parquet shards are downloaded and cached")
	flagData      = flag.String("data", "", "comma-separated local parquet shard paths; alternative to -repo")
	flagCacheDir  = flag.String("cache", hub.DefaultCacheDir(), "local cache directory for downloaded files")
	flagVocabSize = flag.Int("vocab-size", 25000, "maximum vocabulary size, reserved ids included (0 = unlimited)")
	flagVocabOut  = flag.String("vocab-out", "", "if set, write the built vocabulary as JSON to this path")
	flagValFrac   = flag.Float64("val-fraction", 0.3, "fraction of documents held out for validation")
	flagBatchSize = flag.Int("batch-size", 64, "examples per batch")
	flagChunkMult = flag.Int("chunk-multiplier", sampler.DefaultChunkMultiplier, "length-sort chunk size, in batches")
	flagSeed      = flag.Int64("seed", 42, "seed for split shuffling and the batch sampler")
	flagGloVe     = flag.String("embeddings", "", "optional GloVe text file with pre-trained vectors")
	flagDim       = flag.Int("dim", 0, "embedding dimension (0 = infer from the GloVe file)")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Exitf("sentiment-prep: %+v", err)
	}
}

func run() error {
	docs, err := loadDocuments()
	if err != nil {
		return err
	}

	train, validation, err := corpus.Split(docs, *flagValFrac, *flagSeed)
	if err != nil {
		return err
	}

	tokenizer := words.New(nil)
	vocabulary, err := corpus.BuildVocabulary(train, tokenizer, *flagVocabSize)
	if err != nil {
		return err
	}
	if *flagVocabOut != "" {
		if err = vocabulary.Save(*flagVocabOut); err != nil {
			return err
		}
	}

	encoder := tokenizer.Bind(vocabulary)
	trainExamples, err := corpus.Numericalize(train, encoder)
	if err != nil {
		return err
	}
	if _, err = corpus.Numericalize(validation, encoder); err != nil {
		return err
	}

	var coverageLine string
	if *flagGloVe != "" {
		vectors, err := embeddings.ReadGloVe(*flagGloVe, *flagDim)
		if err != nil {
			return err
		}
		dim := *flagDim
		if dim == 0 {
			for _, vector := range vectors {
				dim = len(vector)
				break
			}
		}
		matrix, err := embeddings.NewMatrix(vocabulary, dim, vectors, *flagSeed)
		if err != nil {
			return err
		}
		coverageLine = fmt.Sprintf("%s %d/%d words (dim %d)",
			labelStyle.Render("pre-trained coverage:"), matrix.Coverage(), matrix.NumRows(), matrix.Dim())
	}

	s, err := sampler.New(trainExamples, sampler.Config{
		BatchSize:       *flagBatchSize,
		ChunkMultiplier: *flagChunkMult,
		Seed:            *flagSeed,
	})
	if err != nil {
		return err
	}

	// Stream one epoch and measure how much of each padded batch is real
	// tokens vs padding.
	var numBatches, tokens, cells int
	for batch := range s.Pass() {
		numBatches++
		cells += batch.Size() * batch.MaxLen()
		for _, length := range batch.Lengths {
			tokens += length
		}
	}
	efficiency := 0.0
	if cells > 0 {
		efficiency = 100 * float64(tokens) / float64(cells)
	}

	lines := []string{
		titleStyle.Render("sentiment-prep"),
		fmt.Sprintf("%s %d train / %d validation", labelStyle.Render("documents:"), len(train), len(validation)),
		fmt.Sprintf("%s %d ids", labelStyle.Render("vocabulary:"), vocabulary.Size()),
		fmt.Sprintf("%s %d batches of <= %d, %.1f%% token cells (rest padding)",
			labelStyle.Render("one epoch:"), numBatches, *flagBatchSize, efficiency),
	}
	if coverageLine != "" {
		lines = append(lines, coverageLine)
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
	return nil
}

// loadDocuments reads the corpus from -data paths or downloads the -repo
// train shards.
func loadDocuments() ([]corpus.Document, error) {
	if *flagData != "" {
		return corpus.ReadParquetShards(strings.Split(*flagData, ",")...)
	}
	if *flagRepo == "" {
		flag.Usage()
		os.Exit(2)
	}
	repo := hub.New(*flagRepo).InCacheDir(*flagCacheDir)
	shards, err := repo.ParquetFiles("train")
	if err != nil {
		return nil, err
	}
	localPaths, err := repo.DownloadFiles(context.Background(), shards...)
	if err != nil {
		return nil, err
	}
	return corpus.ReadParquetShards(localPaths...)
}
