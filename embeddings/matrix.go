package embeddings

import (
	"math/rand"

	"github.com/gomlx/go-sentiment/vocab"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Matrix is an embedding lookup table aligned to a vocabulary: row i is the
// vector for vocabulary id i.
//
// The PAD row is all zeros; vocabulary words found in the pre-trained vectors
// get their pre-trained row; the rest (UNK included) are initialized from a
// uniform distribution scaled by the dimension, drawn from an explicit rng
// seeded at construction.
type Matrix struct {
	dim      int
	rows     [][]float32
	numFound int
}

// NewMatrix builds the vocabulary-aligned matrix from pre-trained vectors.
//
// dim must match the vectors' dimension. vectors may be missing any number of
// vocabulary words; how many were found is reported by Coverage.
func NewMatrix(v *vocab.Vocabulary, dim int, vectors map[string][]float32, seed int64) (*Matrix, error) {
	if dim < 1 {
		return nil, errors.Errorf("embedding dimension must be >= 1, got %d", dim)
	}
	rng := rand.New(rand.NewSource(seed))
	scale := 0.5 / float32(dim)

	m := &Matrix{
		dim:  dim,
		rows: make([][]float32, v.Size()),
	}
	for id := 0; id < v.Size(); id++ {
		row := make([]float32, dim)
		m.rows[id] = row
		if id == vocab.PadID {
			continue // PAD stays zero so padded positions contribute nothing.
		}
		token, _ := v.Token(id)
		if vector, ok := vectors[token]; ok && id != vocab.UnkID {
			if len(vector) != dim {
				return nil, errors.Errorf("pre-trained vector for %q has dimension %d, want %d",
					token, len(vector), dim)
			}
			copy(row, vector)
			m.numFound++
			continue
		}
		for jj := range row {
			row[jj] = (rng.Float32()*2 - 1) * scale
		}
	}
	klog.V(1).Infof("embedding matrix: %d/%d vocabulary words covered by pre-trained vectors",
		m.numFound, v.Size())
	return m, nil
}

// Dim returns the embedding dimension.
func (m *Matrix) Dim() int {
	return m.dim
}

// NumRows returns the number of rows (the vocabulary size).
func (m *Matrix) NumRows() int {
	return len(m.rows)
}

// Coverage returns how many vocabulary ids got a pre-trained row.
func (m *Matrix) Coverage() int {
	return m.numFound
}

// Row returns the vector for the given vocabulary id. The returned slice is
// the matrix's own storage; callers must not modify it.
func (m *Matrix) Row(id int) ([]float32, error) {
	if id < 0 || id >= len(m.rows) {
		return nil, errors.Errorf("embedding row %d out of range [0, %d)", id, len(m.rows))
	}
	return m.rows[id], nil
}

// Tensor exports the matrix as a [NumRows, Dim] GoMLX tensor for the
// downstream model's embedding layer.
func (m *Matrix) Tensor() *tensors.Tensor {
	flat := make([]float32, 0, len(m.rows)*m.dim)
	for _, row := range m.rows {
		flat = append(flat, row...)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(m.rows), m.dim)
}
