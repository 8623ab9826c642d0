// Package sampler turns an unordered collection of variable-length examples
// into a stream of fixed-size, length-homogeneous padded batches.
//
// Pure random batching wastes computation on padding (a short review batched
// with a long one is padded to the long one's length); a full global sort by
// length removes the waste but feeds the model a short-to-long curriculum
// artifact that biases optimization. The sampler takes the middle road: draw
// examples in shuffled order, cut them into chunks of BatchSize *
// ChunkMultiplier, sort each chunk by length, slice the sorted chunk into
// batches, then shuffle the batch order across the whole pass. Padding waste
// is bounded by the length spread within one chunk while batch order stays
// approximately random.
//
// The sampler owns its shuffle state: an explicit rand.Rand seeded at
// construction. Samplers are therefore reproducible independent of the
// process-wide random state and of any other sampler running concurrently.
package sampler

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/gomlx/go-sentiment/corpus"
	"github.com/pkg/errors"
)

// DefaultChunkMultiplier is the default K: chunks hold BatchSize*K examples.
// Larger K means better batch-order randomness but more padding waste per
// batch; 64 sits in the usual 50-100 band.
const DefaultChunkMultiplier = 64

// Config configures a Sampler.
type Config struct {
	// BatchSize is the target number of examples per batch. Required, >= 1.
	// One trailing batch per pass may be smaller.
	BatchSize int

	// ChunkMultiplier is K: examples are length-sorted within chunks of
	// BatchSize*K before being sliced into batches. 0 selects
	// DefaultChunkMultiplier; negative values are a configuration error.
	ChunkMultiplier int

	// Seed for the sampler-owned random state. The same seed over the same
	// examples reproduces the same sequence of passes.
	Seed int64

	// PadID is the id sequences are right-padded with. Defaults to
	// vocab.PadID (0).
	PadID int
}

// Batch is one padded batch of examples.
//
// All rows of TokenIDs have identical length, the maximum original length in
// the batch; shorter sequences are right-padded with PadID. Labels and
// Lengths run parallel to the rows; Lengths holds the original (unpadded)
// lengths for downstream masking or packing.
type Batch struct {
	TokenIDs [][]int
	Labels   []int
	Lengths  []int
	PadID    int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.TokenIDs)
}

// MaxLen returns the padded row length, zero for an empty batch.
func (b *Batch) MaxLen() int {
	if len(b.TokenIDs) == 0 {
		return 0
	}
	return len(b.TokenIDs[0])
}

// Sampler produces length-bucketed batch passes over a fixed example set.
//
// A Sampler is not safe for concurrent passes: its random state is owned by
// the instance and advances as passes are drawn. Use one Sampler per
// goroutine, or PrefetchPass.
type Sampler struct {
	examples        []corpus.Example
	batchSize       int
	chunkMultiplier int
	padID           int
	rng             *rand.Rand
}

// New creates a Sampler over examples.
//
// All validation happens here, not at the first batch request: a
// non-positive batch size or chunk multiplier is a configuration error, and
// any example with an empty token sequence is a data error reported with its
// index (label/example count mismatches cannot happen, corpus.Example pairs
// them by construction).
func New(examples []corpus.Example, cfg Config) (*Sampler, error) {
	if cfg.BatchSize < 1 {
		return nil, errors.Errorf("sampler batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.ChunkMultiplier < 0 {
		return nil, errors.Errorf("sampler chunk multiplier must be >= 1 (or 0 for the default %d), got %d",
			DefaultChunkMultiplier, cfg.ChunkMultiplier)
	}
	if cfg.ChunkMultiplier == 0 {
		cfg.ChunkMultiplier = DefaultChunkMultiplier
	}
	var empty []string
	for ii, example := range examples {
		if example.Len() < 1 {
			empty = append(empty, fmt.Sprintf("%d", ii))
		}
	}
	if len(empty) > 0 {
		return nil, errors.Errorf("%d examples have empty token sequences (indices %s)",
			len(empty), strings.Join(empty, ", "))
	}
	return &Sampler{
		examples:        examples,
		batchSize:       cfg.BatchSize,
		chunkMultiplier: cfg.ChunkMultiplier,
		padID:           cfg.PadID,
		rng:             rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// NumExamples returns the number of examples per pass.
func (s *Sampler) NumExamples() int {
	return len(s.examples)
}

// NumBatches returns the number of batches every pass yields:
// ceil(NumExamples/BatchSize).
func (s *Sampler) NumBatches() int {
	return (len(s.examples) + s.batchSize - 1) / s.batchSize
}

// Pass returns an iterator over one pass of batches, usable with range:
//
//	for batch := range s.Pass() { ... }
//
// Every example appears in exactly one batch of the pass; the iterator is
// exhausted after NumBatches() batches (immediately, for an empty example
// set). Exhaustion is the normal end of the range, not an error; all error
// conditions were already reported by New.
//
// Each call starts a fresh pass with fresh shuffles drawn from the
// sampler-owned random state, so successive passes order batches
// differently while remaining reproducible for a given construction seed.
func (s *Sampler) Pass() func(yield func(*Batch) bool) {
	plan := s.planPass()
	return func(yield func(*Batch) bool) {
		for _, batchIndices := range plan {
			if !yield(s.pad(batchIndices)) {
				return
			}
		}
	}
}

// planPass draws the whole pass up front: the example permutation and the
// batch-order shuffle. Drawing everything before the first yield keeps the
// random-state consumption per pass fixed even when a consumer stops early.
func (s *Sampler) planPass() [][]int {
	order := s.rng.Perm(len(s.examples))
	chunkSize := s.batchSize * s.chunkMultiplier

	batches := make([][]int, 0, s.NumBatches())
	for chunkStart := 0; chunkStart < len(order); chunkStart += chunkSize {
		chunk := order[chunkStart:min(chunkStart+chunkSize, len(order))]

		// Sort the chunk by length; stable so equal lengths keep their
		// shuffled relative order.
		sort.SliceStable(chunk, func(i, j int) bool {
			return s.examples[chunk[i]].Len() < s.examples[chunk[j]].Len()
		})

		for batchStart := 0; batchStart < len(chunk); batchStart += s.batchSize {
			batches = append(batches, chunk[batchStart:min(batchStart+s.batchSize, len(chunk))])
		}
	}
	s.rng.Shuffle(len(batches), func(i, j int) {
		batches[i], batches[j] = batches[j], batches[i]
	})
	return batches
}

// pad materializes one batch: rows right-padded to the batch's max length.
func (s *Sampler) pad(indices []int) *Batch {
	maxLen := 0
	for _, idx := range indices {
		maxLen = max(maxLen, s.examples[idx].Len())
	}
	batch := &Batch{
		TokenIDs: make([][]int, len(indices)),
		Labels:   make([]int, len(indices)),
		Lengths:  make([]int, len(indices)),
		PadID:    s.padID,
	}
	for ii, idx := range indices {
		example := s.examples[idx]
		row := make([]int, maxLen)
		copy(row, example.IDs)
		for jj := example.Len(); jj < maxLen; jj++ {
			row[jj] = s.padID
		}
		batch.TokenIDs[ii] = row
		batch.Labels[ii] = example.Label
		batch.Lengths[ii] = example.Len()
	}
	return batch
}
