// Package embedding turns text into unit-length vectors.
//
// Information Hiding:
// - Embedding backends (local hashing, Ollama, OpenAI, Gemini) hidden behind Embedder
// - Normalization applied uniformly so similarity can be a plain dot product

package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Embedder converts text into a fixed-length, unit-normalized vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Options configures New.
type Options struct {
	Provider   string // hash, ollama, openai, gemini
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
}

// New builds an Embedder for the named provider.
func New(opts Options) (Embedder, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "hash":
		return NewHashEmbedder(opts.Dimensions), nil
	case "ollama":
		return NewOllamaEmbedder(opts.BaseURL, opts.Model), nil
	case "openai", "local":
		return NewOpenAIEmbedder(opts.APIKey, opts.BaseURL, opts.Model, opts.Dimensions), nil
	case "gemini", "google":
		e, err := NewGenAIEmbedder(context.Background(), opts.APIKey, opts.Model, opts.Dimensions)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", opts.Provider)
	}
}
