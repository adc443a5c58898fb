package completion

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds completer configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	CacheSize int // 0 disables the response cache
}

// NewFromEnv creates a completer based on environment variables
// Priority:
// 1. CHUNKWISE_COMPLETION_PROVIDER (ollama, openai)
// 2. OPENAI_API_KEY selects openai
// 3. Default to a local Ollama server
func NewFromEnv() (Completer, error) {
	return New(Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: 1000,
	})
}

// New creates a completer with explicit configuration.
// An empty provider is detected from the environment.
func New(cfg Config) (Completer, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	var (
		c   Completer
		err error
	)
	switch provider {
	case ProviderOllama:
		c = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		c, err = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		c = WithCache(c, NewCache(cfg.CacheSize))
	}
	return c, nil
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderOllama
}
