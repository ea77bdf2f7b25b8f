// OpenAI-compatible Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Streaming via go-openai library
//
// The same provider serves OpenAI, DeepSeek and any local server that
// speaks the Chat Completions API (llama.cpp, LM Studio, vLLM) through
// a custom base URL.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAICompatibleProvider creates a provider for any server implementing
// the Chat Completions API. An empty baseURL uses the OpenAI default.
func NewOpenAICompatibleProvider(name, apiKey, baseURL, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request, streaming when onDelta is set.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (Response, error) {
	if onDelta != nil {
		return p.stream(ctx, messages, onDelta)
	}

	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages))
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return Response{
		Role:    RoleAssistant,
		Content: content,
		Usage:   convertOpenAIUsage(resp.Usage),
	}, nil
}

func (p *OpenAIProvider) stream(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (Response, error) {
	req := p.request(messages)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	var usage *TokenUsage
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("stream recv failed: %w", err)
		}

		// Usage arrives on the final chunk
		if chunk.Usage != nil {
			usage = convertOpenAIUsage(*chunk.Usage)
		}

		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				content.WriteString(delta)
				onDelta(delta)
			}
		}
	}

	return Response{Role: RoleAssistant, Content: content.String(), Usage: usage}, nil
}

func (p *OpenAIProvider) request(messages []ChatMessage) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
}

// convertToOpenAIMessages converts our ChatMessage to openai.ChatCompletionMessage
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		role := msg.Role
		// Tool transcripts travel as plain text, so tool-role history is
		// replayed as user content.
		if role == RoleTool {
			role = openai.ChatMessageRoleUser
		}
		result[i] = openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		}
	}
	return result
}

func convertOpenAIUsage(u openai.Usage) *TokenUsage {
	return &TokenUsage{
		PromptTokens:     uint32(u.PromptTokens),
		CompletionTokens: uint32(u.CompletionTokens),
		TotalTokens:      uint32(u.TotalTokens),
	}
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
