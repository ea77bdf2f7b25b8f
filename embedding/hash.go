package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

// DefaultHashDimensions is the width of HashEmbedder vectors.
const DefaultHashDimensions = 50

// HashEmbedder is an offline bag-of-words embedder. Each lowercased,
// whitespace-separated word is hashed into one of a fixed number of
// buckets weighted by its frequency, and the result is normalized.
// It needs no model and is deterministic across runs.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder. dims <= 0 uses DefaultHashDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector width.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// Embed never fails; empty text yields a zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		counts[word]++
	}

	vec := make([]float32, h.dims)
	for word, n := range counts {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(word))
		vec[hasher.Sum32()%uint32(h.dims)] += float32(n) * 0.1
	}
	return Normalize(vec), nil
}

var _ Embedder = (*HashEmbedder)(nil)
