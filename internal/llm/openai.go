package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/pkg/utils"
	"go.uber.org/zap"
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
// vLLM serves the same protocol, so one client covers both; the base URL
// should point at the endpoint's /v1 root.
type OpenAIClient struct {
	provider    string
	baseURL     string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewOpenAIClient creates a client for cfg's endpoint. The HTTP client is
// required; pass one constructed with the desired timeout.
func NewOpenAIClient(cfg *config.LLMConfig, apiKey string, httpClient *http.Client, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		provider:    cfg.Provider,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      apiKey,
		maxTokens:   cfg.MaxCompletionTokens,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// chatRequest matches the OpenAI chat-completions request format.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse matches the OpenAI chat-completions response format.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Generate performs one completion round trip. Transport or protocol errors
// are returned to the caller; interpreting the completion text is the
// caller's concern.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = opts.MaxTokens
	}
	if opts.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("completion returned status %d: %s", resp.StatusCode, utils.Truncate(string(body), 512))
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, fmt.Errorf("no completion choices returned")
	}

	result := Result{Text: completion.Choices[0].Message.Content}
	if completion.Usage != nil {
		result.Usage = Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		}
	}
	c.logger.Debug("completion ok",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
	)
	return result, nil
}

// Provider returns the configured provider name.
func (c *OpenAIClient) Provider() string { return c.provider }

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }
