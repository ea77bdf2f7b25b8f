// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for chat completion.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Streaming transport details

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
//
// Tool use is driven by the text protocol in the prompt, so providers are
// never handed native tool schemas.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request. When onDelta is non-nil the
	// response is streamed and each fragment is passed to it as it arrives;
	// the returned Response always holds the full content.
	Chat(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (Response, error)
}
