// Package llm provides text-completion providers behind one interface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Provider is the interface for text-completion backends. Complete blocks
// until the reply arrives or the provider's timeout expires.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Backend selects a provider implementation.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
)

// Options carries provider construction settings. The API key is read from
// KeyEnv once at construction, not at call sites.
type Options struct {
	Model     string
	BaseURL   string
	KeyEnv    string
	Timeout   time.Duration
	MaxTokens int
}

// New creates a provider for the given backend. Selection is an explicit
// enum, not a naming convention on the model identifier.
func New(backend Backend, opts Options) (Provider, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	switch backend {
	case BackendOllama:
		return newOllamaProvider(opts), nil
	case BackendOpenAI:
		return newOpenAIProvider(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
}

// OllamaProvider talks to a locally hosted Ollama chat endpoint.
type OllamaProvider struct {
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
}

func newOllamaProvider(opts Options) *OllamaProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		model:     opts.Model,
		baseURL:   baseURL,
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model identifier.
func (o *OllamaProvider) Model() string { return o.model }

// Complete sends a prompt to Ollama and returns the reply text.
func (o *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}
	if o.maxTokens > 0 {
		body["options"] = map[string]any{"num_predict": o.maxTokens}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Message.Content == "" {
		return "", fmt.Errorf("empty response from model %s", o.model)
	}

	return result.Message.Content, nil
}

// OpenAIProvider talks to the OpenAI chat completions API or any compatible
// endpoint.
type OpenAIProvider struct {
	model     string
	baseURL   string
	apiKey    string
	maxTokens int
	client    *http.Client
}

func newOpenAIProvider(opts Options) *OpenAIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		model:     opts.Model,
		baseURL:   baseURL,
		apiKey:    os.Getenv(opts.KeyEnv),
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model identifier.
func (o *OpenAIProvider) Model() string { return o.model }

// Complete sends a prompt and returns the first choice's content.
func (o *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if o.maxTokens > 0 {
		body["max_tokens"] = o.maxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from model %s", o.model)
	}

	return result.Choices[0].Message.Content, nil
}
