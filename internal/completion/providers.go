package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// Default models
	DefaultOllamaModel = "qwen2.5:0.5b"
	DefaultOpenAIModel = "gpt-4o-mini"

	DefaultOllamaHost = "http://localhost:11434"
	DefaultTimeout    = 60 * time.Second
)

// Environment variables
const (
	EnvProvider      = "CHUNKWISE_COMPLETION_PROVIDER"
	EnvModel         = "CHUNKWISE_MODEL"
	EnvOllamaHost    = "OLLAMA_HOST"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// OllamaProvider implements Completer using a local Ollama server
type OllamaProvider struct {
	host       string
	model      string
	httpClient *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// NewOllamaProvider creates an Ollama completer. Empty host and model use
// OLLAMA_HOST and the package defaults.
func NewOllamaProvider(host, model string, timeout time.Duration) *OllamaProvider {
	if host == "" {
		host = os.Getenv(EnvOllamaHost)
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OllamaProvider{
		host:  strings.TrimRight(host, "/"),
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: call ollama: %v", ErrProviderFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) > 0 {
			return "", fmt.Errorf("%w: ollama status %d: %s", ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return "", fmt.Errorf("%w: ollama status %d", ErrProviderFailed, resp.StatusCode)
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", ErrProviderFailed, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", ErrProviderFailed, parsed.Error)
	}

	return parsed.Response, nil
}

func (o *OllamaProvider) Provider() string { return ProviderOllama }
func (o *OllamaProvider) Model() string    { return o.model }

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Completer using an OpenAI-compatible chat API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI completer. An empty apiKey falls back
// to OPENAI_API_KEY; an empty baseURL to OPENAI_BASE_URL and then the
// library default.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if baseURL == "" {
		baseURL = os.Getenv(EnvOpenAIBaseURL)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat completion: %v", ErrProviderFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrProviderFailed)
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Provider() string { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string    { return p.model }
func (p *OpenAIProvider) Close() error     { return nil }
