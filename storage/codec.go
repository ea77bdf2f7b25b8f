package storage

import (
	"encoding/binary"
	"encoding/json"
	"math"
)

// bytesPerDim is the width of one encoded float32 component.
const bytesPerDim = 4

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*bytesPerDim)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*bytesPerDim:], math.Float32bits(f))
	}
	return buf
}

// decodeVector reverses encodeVector. A trailing partial component is dropped.
func decodeVector(buf []byte) []float32 {
	n := len(buf) / bytesPerDim
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerDim:]))
	}
	return v
}

// encodeMetadata serializes metadata; nil maps are stored as NULL.
func encodeMetadata(meta map[string]any) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// decodeMetadata never fails: absent or malformed metadata yields an empty map.
func decodeMetadata(raw *string) map[string]any {
	meta := map[string]any{}
	if raw == nil || *raw == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(*raw), &meta); err != nil || meta == nil {
		return map[string]any{}
	}
	return meta
}

// dot returns the dot product of a and b, or 0 when their lengths differ.
// Both vectors are expected to be unit length, making this the cosine similarity.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}
