package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGenAIModel = "text-embedding-004"

// GenAIEmbedder uses the Gemini embedding models.
type GenAIEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewGenAIEmbedder creates a Gemini embedder.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string, dims int) (*GenAIEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	if model == "" {
		model = defaultGenAIModel
	}
	return &GenAIEmbedder{client: client, model: model, dimensions: int32(dims)}, nil
}

// Embed returns the normalized embedding of text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var config *genai.EmbedContentConfig
	if e.dimensions > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(e.dimensions)}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned for model %s", e.model)
	}

	return Normalize(resp.Embeddings[0].Values), nil
}

var _ Embedder = (*GenAIEmbedder)(nil)
