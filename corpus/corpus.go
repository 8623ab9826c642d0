// Package corpus loads labeled review documents and numericalizes them into
// the immutable token-id examples the batch sampler consumes.
//
// The raw corpus is expected in the HuggingFace datasets layout: parquet
// shards with a "text" column and an integer "label" column (0=negative,
// 1=positive for the IMDB-style binary corpora this library targets).
package corpus

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/gomlx/go-sentiment/tokenizers/api"
	"github.com/gomlx/go-sentiment/tokenizers/words"
	"github.com/gomlx/go-sentiment/vocab"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Binary sentiment labels, matching the IMDB convention.
const (
	LabelNegative = 0
	LabelPositive = 1
)

// Document is one raw labeled review.
type Document struct {
	Text  string
	Label int
}

// Example is an immutable numericalized document: a token-id sequence of
// length >= 1 with ids in [0, vocabularySize), plus its class label.
type Example struct {
	IDs   []int
	Label int
}

// Len returns the token-sequence length, the sampler's length key.
func (e Example) Len() int {
	return len(e.IDs)
}

// reviewRow mirrors one row of a labeled-text parquet shard.
type reviewRow struct {
	Text  string `parquet:"text"`
	Label int32  `parquet:"label"`
}

// ReadParquet loads the labeled documents of one parquet shard.
func ReadParquet(path string) ([]Document, error) {
	rows, err := parquet.ReadFile[reviewRow](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet shard %q", path)
	}
	docs := make([]Document, len(rows))
	for ii, row := range rows {
		docs[ii] = Document{Text: row.Text, Label: int(row.Label)}
	}
	klog.V(1).Infof("read %d documents from %q", len(docs), path)
	return docs, nil
}

// ReadParquetShards loads and concatenates several parquet shards, in order.
func ReadParquetShards(paths ...string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		shard, err := ReadParquet(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, shard...)
	}
	return docs, nil
}

// Split partitions docs into a training and a validation slice.
// validationFraction must be in [0, 1); the shuffle is driven by the given
// seed so a run's split is reproducible. The input slice is not modified.
//
// Only the returned training split should feed vocabulary construction,
// otherwise validation tokens leak into the vocabulary.
func Split(docs []Document, validationFraction float64, seed int64) (train, validation []Document, err error) {
	if validationFraction < 0 || validationFraction >= 1 {
		return nil, nil, errors.Errorf("validationFraction=%g must be in [0, 1)", validationFraction)
	}
	shuffled := make([]Document, len(docs))
	copy(shuffled, docs)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	numValidation := int(float64(len(shuffled)) * validationFraction)
	return shuffled[numValidation:], shuffled[:numValidation], nil
}

// BuildVocabulary tokenizes the (training!) documents and builds a
// frequency-ranked vocabulary capped at maxSize ids.
func BuildVocabulary(docs []Document, tokenizer *words.Tokenizer, maxSize int) (*vocab.Vocabulary, error) {
	builder := vocab.NewBuilder()
	for _, doc := range docs {
		builder.Add(tokenizer.Tokenize(doc.Text)...)
	}
	v, err := builder.Build(maxSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build vocabulary from corpus")
	}
	klog.V(1).Infof("built vocabulary: %d distinct tokens, kept %d ids", builder.NumDistinct(), v.Size())
	return v, nil
}

// Numericalize encodes every document into an Example.
//
// Documents whose encoding comes out empty (e.g. whitespace-only text) are a
// data error: they are all reported, by index, rather than silently dropped,
// so corpus-construction bugs surface early. Unknown labels are reported the
// same way.
func Numericalize(docs []Document, tokenizer api.Tokenizer) ([]Example, error) {
	examples := make([]Example, 0, len(docs))
	var bad []string
	for ii, doc := range docs {
		if doc.Label != LabelNegative && doc.Label != LabelPositive {
			bad = append(bad, fmt.Sprintf("document %d has unknown label %d", ii, doc.Label))
			continue
		}
		ids := tokenizer.Encode(doc.Text)
		if len(ids) == 0 {
			bad = append(bad, fmt.Sprintf("document %d encoded to an empty sequence", ii))
			continue
		}
		examples = append(examples, Example{IDs: ids, Label: doc.Label})
	}
	if len(bad) > 0 {
		return nil, errors.Errorf("%d invalid documents: %s", len(bad), strings.Join(bad, "; "))
	}
	return examples, nil
}
