package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"ollama":    ProviderOllama,
		"LOCAL":     ProviderLocal,
		"lmstudio":  ProviderLocal,
		"gpt":       ProviderOpenAI,
		"claude":    ProviderAnthropic,
		"deepseek":  ProviderDeepSeek,
		"google":    ProviderGemini,
		"anthropic": ProviderAnthropic,
	}
	for in, want := range cases {
		got, err := ParseProviderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProviderType("unknown")
	assert.Error(t, err)
}

func TestOllamaFromEnvNeedsNoKey(t *testing.T) {
	provider, err := ProviderOllama.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider.Name())
	assert.Equal(t, ModelOllamaLlama32, provider.Model())
}

func TestHostedProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := ProviderOpenAI.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBuilderOptions(t *testing.T) {
	provider, err := ProviderLocal.Model("qwen").BaseURL("http://127.0.0.1:9/v1").MaxTokens(10).Temperature(0).APIKey("")
	require.NoError(t, err)
	assert.Equal(t, "local", provider.Name())
	assert.Equal(t, "qwen", provider.Model())

	deepseek, err := ProviderDeepSeek.APIKey("k")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", deepseek.Name())
	assert.Equal(t, ModelDeepSeekChat, deepseek.Model())
}

type stubProvider struct {
	responses []Response
	calls     int
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }
func (s *stubProvider) Chat(_ context.Context, _ []ChatMessage, _ DeltaFunc) (Response, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func TestClientAccumulatesUsage(t *testing.T) {
	stub := &stubProvider{responses: []Response{
		{Content: "a", Usage: &TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}},
		{Content: "b"},
	}}
	client := NewClient(stub)

	for _, want := range []string{"a", "b"} {
		got, err := client.Chat(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, 2, client.Calls())
	assert.Equal(t, TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}, client.Usage())
	assert.Same(t, stub, client.Provider())
}
