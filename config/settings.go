// Package config provides application settings loaded from a YAML file and
// environment variables.
//
// Settings are created via New() or Load() which handle:
// - YAML file parsing (optional, applied first)
// - Environment variable parsing with validation (overrides the file)
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Context   ContextConfig   `yaml:"context"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   uint32  `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig holds reasoning loop configuration.
type AgentConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	SystemPrompt string `yaml:"system_prompt"`
	DisplayField string `yaml:"display_field"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
}

// ContextConfig holds retrieval and context budget settings.
type ContextConfig struct {
	TopK           int           `yaml:"top_k"`
	Threshold      float64       `yaml:"threshold"`
	ResourceBudget int           `yaml:"resource_budget"`
	HistoryBudget  int           `yaml:"history_budget"`
	Reserve        int           `yaml:"reserve"`
	CacheSize      int           `yaml:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// StorageConfig locates persistent state. Empty paths keep everything in memory.
type StorageConfig struct {
	IndexPath   string `yaml:"index_path"`
	HistoryPath string `yaml:"history_path"`
	ResourceDir string `yaml:"resource_dir"`
	MCPConfig   string `yaml:"mcp_config"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"ollama":    {"OLLAMA_MODEL", "llama3.2", ""},
	"local":     {"LOCAL_MODEL", "local-model", ""},
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude":   "anthropic",
	"google":   "gemini",
	"gpt":      "openai",
	"llamacpp": "local",
	"lmstudio": "local",
}

// DefaultProvider is used when neither the caller, the file nor LLM_PROVIDER names one.
const DefaultProvider = "ollama"

// Defaults returns settings with every default applied and no provider resolved.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			MaxTokens:   2048,
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			MaxSteps:     5,
			DisplayField: "display",
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 50,
		},
		Context: ContextConfig{
			TopK:           3,
			Threshold:      0.3,
			ResourceBudget: 800,
			HistoryBudget:  1200,
			Reserve:        1000,
			CacheSize:      256,
			CacheTTL:       5 * time.Minute,
		},
	}
}

// New creates settings for the specified provider from environment variables only.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	return Load("", provider)
}

// Load reads the YAML file at path when non-empty, then applies environment
// overrides. A non-empty provider argument wins over both.
func Load(path, provider string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	}

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}

	switch {
	case provider != "":
		s.LLM.Provider = provider
	case s.LLM.Provider == "":
		s.LLM.Provider = DefaultProvider
	}
	s.LLM.Provider = normalizeProvider(s.LLM.Provider)

	info, err := getProviderInfo(s.LLM.Provider)
	if err != nil {
		return Settings{}, err
	}

	// Model precedence: provider env var, then file, then provider default.
	if val := os.Getenv(info.modelEnv); val != "" {
		s.LLM.Model = val
	} else if s.LLM.Model == "" {
		s.LLM.Model = info.defaultModel
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Validate reports out-of-range values.
func (s Settings) Validate() error {
	var errs []error
	if s.Agent.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_steps must be positive, got %d", s.Agent.MaxSteps))
	}
	if s.Context.TopK <= 0 {
		errs = append(errs, fmt.Errorf("context.top_k must be positive, got %d", s.Context.TopK))
	}
	if s.Context.Threshold < 0 || s.Context.Threshold > 1 {
		errs = append(errs, fmt.Errorf("context.threshold must be within [0, 1], got %g", s.Context.Threshold))
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be within [0, 2], got %g", s.LLM.Temperature))
	}
	return errors.Join(errs...)
}

func applyEnv(s *Settings) error {
	var err error
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		s.LLM.Provider = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		s.LLM.BaseURL = v
	}
	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}
	if s.Agent.MaxSteps, err = getEnvInt("AGENT_MAX_STEPS", s.Agent.MaxSteps); err != nil {
		return err
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		s.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		s.Embedding.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if s.Embedding.BaseURL == "" {
			s.Embedding.BaseURL = v
		}
		if s.LLM.BaseURL == "" && normalizeProvider(s.LLM.Provider) == "ollama" {
			s.LLM.BaseURL = v
		}
	}
	if s.Embedding.Dimensions, err = getEnvInt("EMBEDDING_DIMENSIONS", s.Embedding.Dimensions); err != nil {
		return err
	}
	if s.Context.TopK, err = getEnvInt("CONTEXT_TOP_K", s.Context.TopK); err != nil {
		return err
	}
	if s.Context.Threshold, err = getEnvFloat64("CONTEXT_THRESHOLD", s.Context.Threshold); err != nil {
		return err
	}
	if s.Context.ResourceBudget, err = getEnvInt("CONTEXT_RESOURCE_BUDGET", s.Context.ResourceBudget); err != nil {
		return err
	}
	if s.Context.HistoryBudget, err = getEnvInt("CONTEXT_HISTORY_BUDGET", s.Context.HistoryBudget); err != nil {
		return err
	}
	if s.Context.Reserve, err = getEnvInt("CONTEXT_RESERVE", s.Context.Reserve); err != nil {
		return err
	}
	if s.Context.CacheTTL, err = getEnvDuration("CONTEXT_CACHE_TTL", s.Context.CacheTTL); err != nil {
		return err
	}
	if v := os.Getenv("THESEUS_INDEX_PATH"); v != "" {
		s.Storage.IndexPath = v
	}
	if v := os.Getenv("THESEUS_HISTORY_PATH"); v != "" {
		s.Storage.HistoryPath = v
	}
	if v := os.Getenv("THESEUS_RESOURCE_DIR"); v != "" {
		s.Storage.ResourceDir = v
	}
	if v := os.Getenv("THESEUS_MCP_CONFIG"); v != "" {
		s.Storage.MCPConfig = v
	}
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
// Local providers need none and return an empty key.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	if info.apiKeyEnv == "" {
		return "", nil
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the supported provider names in sorted order.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
