// LLM Provider Factory - builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// Local model through Ollama, no API key needed
//	local, err := llm.ProviderOllama.FromEnv()  // Uses llama3.2
//
//	// Hosted providers read their API key from the environment
//	claude, err := llm.ProviderAnthropic.FromEnv()
//
//	// Any OpenAI-compatible server (llama.cpp, LM Studio, vLLM)
//	srv, err := llm.ProviderLocal.
//	    Model("qwen2.5-7b-instruct").
//	    BaseURL("http://localhost:8080/v1").
//	    FromEnv()
//
//	// Full configuration
//	custom, err := llm.ProviderOllama.
//	    Model(llm.ModelOllamaQwen25).
//	    MaxTokens(2048).
//	    Temperature(0.2).
//	    FromEnv()

package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOllama is a local Ollama server.
	ProviderOllama ProviderType = iota
	// ProviderLocal is any local server exposing the OpenAI Chat Completions API.
	ProviderLocal
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOllama:
		return "ollama"
	case ProviderLocal:
		return "local"
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderLocal:
		return "LOCAL_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// RequiresAPIKey reports whether the provider refuses to start without a key.
func (p ProviderType) RequiresAPIKey() bool {
	return p != ProviderOllama && p != ProviderLocal
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOllama:
		return ModelOllamaLlama32
	case ProviderLocal:
		return "local-model"
	case ProviderOpenAI:
		return ModelOpenAIGPT4oMini
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}

// DefaultBaseURL returns the endpoint used when none is configured.
func (p ProviderType) DefaultBaseURL() string {
	switch p {
	case ProviderOllama:
		return DefaultOllamaURL
	case ProviderLocal:
		return "http://localhost:8080/v1"
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "ollama":
		return ProviderOllama, nil
	case "local", "llamacpp", "lmstudio":
		return ProviderLocal, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	baseURL      string
	maxTokens    uint32
	temperature  *float32
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// BaseURL overrides the provider endpoint.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := ""
	if envVar != "" {
		apiKey = os.Getenv(envVar)
	}
	if apiKey == "" && b.providerType.RequiresAPIKey() {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	baseURL := b.baseURL
	if baseURL == "" {
		baseURL = b.providerType.DefaultBaseURL()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	temperature := float32(0.2) // low by default so the text protocol stays stable
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOllama:
		return NewOllamaProvider(baseURL, model, maxTokens, temperature), nil
	case ProviderLocal:
		if apiKey == "" {
			apiKey = "not-needed"
		}
		return NewOpenAICompatibleProvider("local", apiKey, baseURL, model, maxTokens, temperature), nil
	case ProviderOpenAI:
		return NewOpenAICompatibleProvider("openai", apiKey, baseURL, model, maxTokens, temperature), nil
	case ProviderDeepSeek:
		if baseURL == "" {
			baseURL = deepseekBaseURL
		}
		return NewOpenAICompatibleProvider("deepseek", apiKey, baseURL, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		var opts []option.RequestOption
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature, opts...), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Model identifier constants for supported providers.

// Ollama model identifiers (tags as published in the Ollama library)
const (
	// ModelOllamaLlama32 is Llama 3.2 3B: small enough for laptops.
	ModelOllamaLlama32 = "llama3.2"
	// ModelOllamaQwen25 is Qwen 2.5 7B Instruct.
	ModelOllamaQwen25 = "qwen2.5:7b"
	// ModelOllamaMistral is Mistral 7B Instruct.
	ModelOllamaMistral = "mistral"
	// ModelOllamaNomicEmbed is the nomic-embed-text embedding model.
	ModelOllamaNomicEmbed = "nomic-embed-text"
)

// OpenAI model identifiers
const (
	// ModelOpenAIGPT4o is GPT-4o.
	ModelOpenAIGPT4o = "gpt-4o"
	// ModelOpenAIGPT4oMini is GPT-4o-mini.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
)

// DeepSeek model identifiers
const (
	// ModelDeepSeekChat is the general chat model.
	ModelDeepSeekChat = "deepseek-chat"
)

// Gemini model identifiers
const (
	// ModelGeminiFlash25 is Gemini 2.5 Flash.
	ModelGeminiFlash25 = "gemini-2.5-flash"
)
