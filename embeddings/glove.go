// Package embeddings loads pre-trained word-embedding matrices and aligns
// them to a vocabulary, producing the lookup table the downstream model
// consumes unmodified.
//
// Two artifact formats are supported: the GloVe text format (one
// "token v1 v2 ... vD" line per word) and single-file safetensors.
package embeddings

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// maxLineBytes bounds one GloVe line; 300-dim vectors stay well under this.
const maxLineBytes = 1 << 16

// ReadGloVe parses a GloVe text file into a token -> vector map.
//
// dim is the expected vector dimension; 0 infers it from the first line.
// Lines whose dimension disagrees are malformed and reported with their line
// number.
func ReadGloVe(path string, dim int) (map[string][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open GloVe file %q", path)
	}
	defer func() { _ = f.Close() }()

	vectors := make(map[string][]float32)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(fields) - 1
			if dim < 1 {
				return nil, errors.Errorf("GloVe file %q line %d has no vector components", path, lineNum)
			}
		}
		if len(fields) != dim+1 {
			return nil, errors.Errorf("GloVe file %q line %d has %d components, want %d",
				path, lineNum, len(fields)-1, dim)
		}
		vector := make([]float32, dim)
		for ii, field := range fields[1:] {
			value, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "GloVe file %q line %d has a malformed component", path, lineNum)
			}
			vector[ii] = float32(value)
		}
		vectors[fields[0]] = vector
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading GloVe file %q", path)
	}
	klog.V(1).Infof("read %d pre-trained vectors (dim %d) from %q", len(vectors), dim, path)
	return vectors, nil
}
