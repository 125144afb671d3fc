// Package llm provides the client boundary to text-completion services and a
// factory for creating the configured provider.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hyperjump/furui/internal/config"
	"go.uber.org/zap"
)

// Provider identifies a completion backend.
type Provider string

const (
	// ProviderOpenAI talks to a hosted OpenAI-compatible chat-completions endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderVLLM talks to a local vLLM server, which serves the same wire
	// protocol; no API key is required.
	ProviderVLLM Provider = "vllm"
	// ProviderMock is a deterministic in-process client for tests and dry runs.
	ProviderMock Provider = "mock"
)

// Options control one completion request.
type Options struct {
	// JSON asks the provider to constrain output to a JSON object when it
	// supports that. The returned text may still be imperfect JSON and must
	// go through ParseJSON.
	JSON bool
	// MaxTokens caps the completion length; 0 uses the client's default.
	MaxTokens int
}

// Usage reports provider token accounting for one call, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Result is one completion.
type Result struct {
	Text  string
	Usage Usage
}

// Client is the boundary to a text-completion service. The implementation is
// chosen once at construction; callers never branch on provider identity.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (Result, error)
	Provider() string
	Model() string
}

// New creates a client for the configured provider.
// Supported providers: "openai", "vllm", "mock".
// The HTTP client is injected so callers own its lifecycle and timeout.
func New(cfg *config.LLMConfig, httpClient *http.Client, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch Provider(cfg.Provider) {
	case ProviderOpenAI:
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider openai requires %s to be set", cfg.APIKeyEnv)
		}
		return NewOpenAIClient(cfg, key, httpClient, logger), nil
	case ProviderVLLM, "":
		return NewOpenAIClient(cfg, os.Getenv(cfg.APIKeyEnv), httpClient, logger), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: openai, vllm, mock)", cfg.Provider)
	}
}
