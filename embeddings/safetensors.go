package embeddings

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Header represents the JSON header of a safetensors file.
type Header struct {
	Tensors  map[string]*TensorMetadata // Tensor name -> metadata
	Metadata map[string]any             // Optional __metadata__ field
}

// TensorMetadata represents metadata for a single tensor in a safetensors file.
type TensorMetadata struct {
	Name        string   `json:"-"`            // Tensor name (from map key)
	Dtype       string   `json:"dtype"`        // Data type: embeddings ship as F32 or F64
	Shape       []int    `json:"shape"`        // Tensor dimensions
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end] byte offsets in file
}

// SizeBytes returns the size of the tensor data in bytes.
func (tm *TensorMetadata) SizeBytes() int64 {
	return tm.DataOffsets[1] - tm.DataOffsets[0]
}

// NumElements returns the total number of elements based on the shape.
func (tm *TensorMetadata) NumElements() int64 {
	prod := int64(1)
	for _, dim := range tm.Shape {
		prod *= int64(dim)
	}
	return prod
}

// ReadHeader parses the header of a safetensors file.
// Safetensors format:
//
//	[8 bytes: header size as little-endian u64]
//	[header_size bytes: JSON header]
//	[remaining bytes: tensor data]
func ReadHeader(path string) (*Header, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to open safetensors file %q", path)
	}
	defer func() { _ = f.Close() }()

	var headerSize uint64
	if err = binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read header size of %q", path)
	}
	if headerSize > 100*1024*1024 { // Sanity check: 100MB max header.
		return nil, 0, errors.Errorf("header of %q too large: %d bytes", path, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err = io.ReadFull(f, headerBytes); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read header JSON of %q", path)
	}
	var rawHeader map[string]json.RawMessage
	if err = json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to parse header JSON of %q", path)
	}

	header := &Header{
		Tensors:  make(map[string]*TensorMetadata),
		Metadata: make(map[string]any),
	}
	for key, value := range rawHeader {
		if key == "__metadata__" {
			if err = json.Unmarshal(value, &header.Metadata); err != nil {
				return nil, 0, errors.Wrapf(err, "failed to parse __metadata__ of %q", path)
			}
			continue
		}
		var tm TensorMetadata
		if err = json.Unmarshal(value, &tm); err != nil {
			return nil, 0, errors.Wrapf(err, "failed to parse metadata of tensor %q in %q", key, path)
		}
		tm.Name = key
		header.Tensors[key] = &tm
	}

	// Tensor data starts after the 8-byte size prefix and the header.
	dataOffset := int64(8 + headerSize)
	return header, dataOffset, nil
}

// LoadTensor loads one tensor from a safetensors file as a GoMLX tensor.
// Only the float dtypes embedding matrices ship in (F32, F64) are supported.
func LoadTensor(path, tensorName string) (*tensors.Tensor, error) {
	header, dataOffset, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	meta, ok := header.Tensors[tensorName]
	if !ok {
		return nil, errors.Errorf("tensor %q not found in %q", tensorName, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	data := make([]byte, meta.SizeBytes())
	if _, err = f.ReadAt(data, dataOffset+meta.DataOffsets[0]); err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor %q data from %q", tensorName, path)
	}
	return tensorFromBytes(data, meta)
}

// LoadTensorStreaming loads one tensor using a memory-mapped file, avoiding a
// second copy of large embedding matrices in the page cache.
func LoadTensorStreaming(path, tensorName string) (*tensors.Tensor, error) {
	header, dataOffset, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	meta, ok := header.Tensors[tensorName]
	if !ok {
		return nil, errors.Errorf("tensor %q not found in %q", tensorName, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	defer func() { _ = mapped.Unmap() }()

	start := dataOffset + meta.DataOffsets[0]
	end := start + meta.SizeBytes()
	if end > int64(len(mapped)) {
		return nil, errors.Errorf("tensor %q data offsets [%d, %d) exceed size of %q (%d bytes)",
			tensorName, start, end, path, len(mapped))
	}
	return tensorFromBytes(mapped[start:end], meta)
}

// VectorsFromSafetensors reads a [len(tokens), dim] embedding tensor and
// keys its rows by the given token list, producing the same map shape
// ReadGloVe does. tokens must be in the tensor's row order.
func VectorsFromSafetensors(path, tensorName string, tokens []string) (map[string][]float32, error) {
	header, dataOffset, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	meta, ok := header.Tensors[tensorName]
	if !ok {
		return nil, errors.Errorf("tensor %q not found in %q", tensorName, path)
	}
	if len(meta.Shape) != 2 {
		return nil, errors.Errorf("tensor %q in %q has shape %v, want a 2-D embedding matrix",
			tensorName, path, meta.Shape)
	}
	if meta.Shape[0] != len(tokens) {
		return nil, errors.Errorf("tensor %q in %q has %d rows but %d tokens were given",
			tensorName, path, meta.Shape[0], len(tokens))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	data := make([]byte, meta.SizeBytes())
	if _, err = f.ReadAt(data, dataOffset+meta.DataOffsets[0]); err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor %q data from %q", tensorName, path)
	}
	flat, err := floatsFromBytes(data, meta)
	if err != nil {
		return nil, err
	}

	dim := meta.Shape[1]
	vectors := make(map[string][]float32, len(tokens))
	for ii, token := range tokens {
		vectors[token] = flat[ii*dim : (ii+1)*dim]
	}
	return vectors, nil
}

// tensorFromBytes decodes the raw little-endian payload into a GoMLX tensor.
func tensorFromBytes(data []byte, meta *TensorMetadata) (*tensors.Tensor, error) {
	numElements := meta.NumElements()
	switch meta.Dtype {
	case "F32":
		if int64(len(data)) != numElements*4 {
			return nil, errors.Errorf("tensor %q: got %d bytes, want %d for F32", meta.Name, len(data), numElements*4)
		}
		flat := make([]float32, numElements)
		for ii := range flat {
			flat[ii] = math.Float32frombits(binary.LittleEndian.Uint32(data[ii*4 : (ii+1)*4]))
		}
		return tensors.FromFlatDataAndDimensions(flat, meta.Shape...), nil
	case "F64":
		if int64(len(data)) != numElements*8 {
			return nil, errors.Errorf("tensor %q: got %d bytes, want %d for F64", meta.Name, len(data), numElements*8)
		}
		flat := make([]float64, numElements)
		for ii := range flat {
			flat[ii] = math.Float64frombits(binary.LittleEndian.Uint64(data[ii*8 : (ii+1)*8]))
		}
		return tensors.FromFlatDataAndDimensions(flat, meta.Shape...), nil
	default:
		return nil, errors.Errorf("tensor %q has dtype %q, only F32/F64 embedding matrices are supported",
			meta.Name, meta.Dtype)
	}
}

// floatsFromBytes decodes the payload to float32, converting F64 down.
func floatsFromBytes(data []byte, meta *TensorMetadata) ([]float32, error) {
	numElements := meta.NumElements()
	flat := make([]float32, numElements)
	switch meta.Dtype {
	case "F32":
		if int64(len(data)) != numElements*4 {
			return nil, errors.Errorf("tensor %q: got %d bytes, want %d for F32", meta.Name, len(data), numElements*4)
		}
		for ii := range flat {
			flat[ii] = math.Float32frombits(binary.LittleEndian.Uint32(data[ii*4 : (ii+1)*4]))
		}
	case "F64":
		if int64(len(data)) != numElements*8 {
			return nil, errors.Errorf("tensor %q: got %d bytes, want %d for F64", meta.Name, len(data), numElements*8)
		}
		for ii := range flat {
			flat[ii] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[ii*8 : (ii+1)*8])))
		}
	default:
		return nil, errors.Errorf("tensor %q has dtype %q, only F32/F64 embedding matrices are supported",
			meta.Name, meta.Dtype)
	}
	return flat, nil
}
