package embeddings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGloVe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glove.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestReadGloVe checks parsing of the one-token-per-line text format.
func TestReadGloVe(t *testing.T) {
	path := writeGloVe(t, "the 0.1 0.2 0.3\nmovie -0.5 0.25 1.0\n")

	vectors, err := ReadGloVe(path, 0)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors["the"])
	assert.Equal(t, []float32{-0.5, 0.25, 1.0}, vectors["movie"])
}

// TestReadGloVeExplicitDim checks the declared-dimension path.
func TestReadGloVeExplicitDim(t *testing.T) {
	path := writeGloVe(t, "the 0.1 0.2 0.3\n")

	vectors, err := ReadGloVe(path, 3)
	require.NoError(t, err)
	assert.Len(t, vectors["the"], 3)

	_, err = ReadGloVe(path, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

// TestReadGloVeMalformed checks dimension and number parsing errors carry
// line numbers.
func TestReadGloVeMalformed(t *testing.T) {
	path := writeGloVe(t, "the 0.1 0.2 0.3\nmovie 0.4 0.5\n")
	_, err := ReadGloVe(path, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	path = writeGloVe(t, "the 0.1 abc 0.3\n")
	_, err = ReadGloVe(path, 0)
	assert.Error(t, err)
}

// TestReadGloVeSkipsBlankLines checks blank lines are tolerated.
func TestReadGloVeSkipsBlankLines(t *testing.T) {
	path := writeGloVe(t, "the 0.1 0.2\n\nmovie 0.3 0.4\n")
	vectors, err := ReadGloVe(path, 0)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

// TestReadGloVeMissingFile checks the open error is wrapped with the path.
func TestReadGloVeMissingFile(t *testing.T) {
	_, err := ReadGloVe(filepath.Join(t.TempDir(), "missing.txt"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt")
}
