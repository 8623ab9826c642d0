package embeddings

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSafetensorsF32 writes a single-tensor safetensors file with the given
// row-major float32 values.
func writeSafetensorsF32(t *testing.T, tensorName string, shape []int, values []float32) string {
	t.Helper()
	payload := make([]byte, 4*len(values))
	for ii, value := range values {
		binary.LittleEndian.PutUint32(payload[ii*4:], math.Float32bits(value))
	}
	headerJSON, err := json.Marshal(map[string]any{
		tensorName: map[string]any{
			"dtype":        "F32",
			"shape":        shape,
			"data_offsets": []int64{0, int64(len(payload))},
		},
		"__metadata__": map[string]string{"format": "pt"},
	})
	require.NoError(t, err)

	var file []byte
	sizePrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizePrefix, uint64(len(headerJSON)))
	file = append(file, sizePrefix...)
	file = append(file, headerJSON...)
	file = append(file, payload...)

	path := filepath.Join(t.TempDir(), "embeddings.safetensors")
	require.NoError(t, os.WriteFile(path, file, 0644))
	return path
}

// TestReadHeader checks header parsing and the data offset.
func TestReadHeader(t *testing.T) {
	path := writeSafetensorsF32(t, "wordvec.weight", []int{2, 3},
		[]float32{1, 2, 3, 4, 5, 6})

	header, dataOffset, err := ReadHeader(path)
	require.NoError(t, err)
	require.Contains(t, header.Tensors, "wordvec.weight")
	meta := header.Tensors["wordvec.weight"]
	assert.Equal(t, "wordvec.weight", meta.Name)
	assert.Equal(t, "F32", meta.Dtype)
	assert.Equal(t, []int{2, 3}, meta.Shape)
	assert.Equal(t, int64(6), meta.NumElements())
	assert.Equal(t, int64(24), meta.SizeBytes())
	assert.Greater(t, dataOffset, int64(8))
	assert.Equal(t, "pt", header.Metadata["format"])
}

// TestLoadTensor checks plain and mmap loading produce the same tensor.
func TestLoadTensor(t *testing.T) {
	values := []float32{0.5, -1.5, 2.25, 3, -4, 5.125}
	path := writeSafetensorsF32(t, "wordvec.weight", []int{3, 2}, values)

	tensor, err := LoadTensor(path, "wordvec.weight")
	require.NoError(t, err)
	require.NotNil(t, tensor)
	assert.Equal(t, 6, tensor.Shape().Size())

	streamed, err := LoadTensorStreaming(path, "wordvec.weight")
	require.NoError(t, err)
	require.NotNil(t, streamed)
	assert.Equal(t, tensor.Shape().Size(), streamed.Shape().Size())
}

// TestLoadTensorNotFound checks the missing-tensor error.
func TestLoadTensorNotFound(t *testing.T) {
	path := writeSafetensorsF32(t, "wordvec.weight", []int{1, 2}, []float32{1, 2})
	_, err := LoadTensor(path, "no.such.tensor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no.such.tensor")
}

// TestVectorsFromSafetensors checks keying tensor rows by a token list.
func TestVectorsFromSafetensors(t *testing.T) {
	values := []float32{1, 2, 3, 4, 5, 6}
	path := writeSafetensorsF32(t, "wordvec.weight", []int{2, 3}, values)

	vectors, err := VectorsFromSafetensors(path, "wordvec.weight", []string{"good", "bad"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 2, 3}, vectors["good"])
	assert.Equal(t, []float32{4, 5, 6}, vectors["bad"])
}

// TestVectorsFromSafetensorsShapeMismatch checks row-count validation.
func TestVectorsFromSafetensorsShapeMismatch(t *testing.T) {
	path := writeSafetensorsF32(t, "wordvec.weight", []int{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	_, err := VectorsFromSafetensors(path, "wordvec.weight", []string{"only-one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 rows")
}
