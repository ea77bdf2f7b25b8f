// Ollama Provider implementation over the Ollama client library.
//
// Information Hiding:
// - Client construction from a base URL
// - Request options (temperature, num_predict)
// - Token accounting from the final stream record

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the address of a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider implements the Provider interface for a local Ollama server.
type OllamaProvider struct {
	baseURL     string
	client      *api.Client
	clientErr   error
	model       string
	maxTokens   int
	temperature float32
}

// NewOllamaProvider creates a provider talking to the Ollama server at baseURL.
// An empty baseURL uses DefaultOllamaURL. A malformed URL is reported by Chat.
func NewOllamaProvider(baseURL, model string, maxTokens uint32, temperature float32) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	p := &OllamaProvider{
		baseURL:     baseURL,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		p.clientErr = fmt.Errorf("invalid Ollama URL %q: %w", baseURL, err)
		return p
	}
	// local generations can be slow
	p.client = api.NewClient(u, &http.Client{Timeout: 5 * time.Minute})
	return p
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Model returns the current model.
func (p *OllamaProvider) Model() string {
	return p.model
}

// Chat sends a chat request. Ollama always streams; fragments are forwarded
// to onDelta when it is set.
func (p *OllamaProvider) Chat(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (Response, error) {
	if p.clientErr != nil {
		return Response{}, p.clientErr
	}

	stream := true
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: make([]api.Message, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{"temperature": p.temperature},
	}
	if p.maxTokens > 0 {
		req.Options["num_predict"] = p.maxTokens
	}
	for i, msg := range messages {
		req.Messages[i] = api.Message{Role: msg.Role, Content: msg.Content}
	}

	var content strings.Builder
	var usage *TokenUsage
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if delta := resp.Message.Content; delta != "" {
			content.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		if resp.Done {
			usage = &TokenUsage{
				PromptTokens:     uint32(resp.PromptEvalCount),
				CompletionTokens: uint32(resp.EvalCount),
				TotalTokens:      uint32(resp.PromptEvalCount + resp.EvalCount),
			}
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	return Response{Role: RoleAssistant, Content: content.String(), Usage: usage}, nil
}

// Verify OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)
