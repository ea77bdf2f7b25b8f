package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// OllamaEmbedder calls the embeddings endpoint of an Ollama server.
type OllamaEmbedder struct {
	model     string
	client    *api.Client
	clientErr error
}

// NewOllamaEmbedder creates an embedder for the server at baseURL.
// A malformed URL is reported by Embed.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}

	e := &OllamaEmbedder{model: model}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		e.clientErr = fmt.Errorf("invalid Ollama URL %q: %w", baseURL, err)
		return e
	}
	e.client = api.NewClient(u, &http.Client{Timeout: time.Minute})
	return e
}

// Embed returns the normalized embedding of text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.clientErr != nil {
		return nil, e.clientErr
	}

	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", e.model)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, x := range resp.Embedding {
		vec[i] = float32(x)
	}
	return Normalize(vec), nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
