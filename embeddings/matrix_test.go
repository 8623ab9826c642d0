package embeddings

import (
	"testing"

	"github.com/gomlx/go-sentiment/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestVocabulary(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	builder := vocab.NewBuilder()
	builder.Add("good", "good", "bad", "obscureword")
	v, err := builder.Build(0)
	require.NoError(t, err)
	return v // ids: 0=<pad> 1=<unk> 2=good 3=bad 4=obscureword
}

// TestNewMatrix checks row alignment: zero PAD row, copied pre-trained rows,
// random rows for the rest.
func TestNewMatrix(t *testing.T) {
	v := buildTestVocabulary(t)
	vectors := map[string][]float32{
		"good": {1, 2, 3},
		"bad":  {-1, -2, -3},
	}
	m, err := NewMatrix(v, 3, vectors, 13)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Dim())
	assert.Equal(t, v.Size(), m.NumRows())
	assert.Equal(t, 2, m.Coverage())

	padRow, err := m.Row(vocab.PadID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, padRow)

	goodRow, err := m.Row(v.ID("good"))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, goodRow)

	// Missing word gets a random (non-zero somewhere) but bounded row.
	obscureRow, err := m.Row(v.ID("obscureword"))
	require.NoError(t, err)
	nonZero := false
	for _, value := range obscureRow {
		assert.LessOrEqual(t, value, float32(0.5)/3)
		assert.GreaterOrEqual(t, value, float32(-0.5)/3)
		if value != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

// TestNewMatrixDeterminism checks that the same seed reproduces identical
// random initialization.
func TestNewMatrixDeterminism(t *testing.T) {
	v := buildTestVocabulary(t)
	vectors := map[string][]float32{"good": {1, 1, 1}}

	m1, err := NewMatrix(v, 3, vectors, 7)
	require.NoError(t, err)
	m2, err := NewMatrix(v, 3, vectors, 7)
	require.NoError(t, err)
	for id := 0; id < v.Size(); id++ {
		row1, err := m1.Row(id)
		require.NoError(t, err)
		row2, err := m2.Row(id)
		require.NoError(t, err)
		assert.Equal(t, row1, row2, "row %d", id)
	}
}

// TestNewMatrixErrors checks dimension validation.
func TestNewMatrixErrors(t *testing.T) {
	v := buildTestVocabulary(t)

	_, err := NewMatrix(v, 0, nil, 1)
	assert.Error(t, err)

	_, err = NewMatrix(v, 3, map[string][]float32{"good": {1, 2}}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 2")
}

// TestMatrixRowBounds checks out-of-range row access.
func TestMatrixRowBounds(t *testing.T) {
	v := buildTestVocabulary(t)
	m, err := NewMatrix(v, 2, nil, 1)
	require.NoError(t, err)

	_, err = m.Row(-1)
	assert.Error(t, err)
	_, err = m.Row(m.NumRows())
	assert.Error(t, err)
}

// TestMatrixTensor checks the exported GoMLX tensor shape.
func TestMatrixTensor(t *testing.T) {
	v := buildTestVocabulary(t)
	m, err := NewMatrix(v, 4, nil, 1)
	require.NoError(t, err)

	tensor := m.Tensor()
	require.NotNil(t, tensor)
	assert.Equal(t, v.Size()*4, tensor.Shape().Size())
}
