// LLMClient - wrapper around providers that tracks calls and usage.

package llm

import (
	"context"
	"sync"
)

// Client wraps a Provider and accumulates call counts and token usage.
type Client struct {
	provider Provider

	mu    sync.Mutex
	calls int
	usage TokenUsage
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a chat completion request and returns just the content.
// Provider errors are returned unchanged.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (string, error) {
	response, err := c.provider.Chat(ctx, messages, onDelta)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.calls++
	c.usage.Add(response.Usage)
	c.mu.Unlock()

	return response.Content, nil
}

// Calls returns the number of successful chat calls.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Usage returns the accumulated token usage.
func (c *Client) Usage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
