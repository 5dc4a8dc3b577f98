package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RateLimit    int // Requests per minute
}

// OpenRouterClient implements LLMClient using the OpenRouter API.
// It makes exactly one HTTP request per Chat call.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openai/gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Model returns the configured default model.
func (c *OpenRouterClient) Model() string {
	return c.defaultModel
}

// RateLimiter returns the client's limiter.
func (c *OpenRouterClient) RateLimiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
		Attempts:  1,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return result.fail(start, ErrorTypeCancelled, err)
	}
	result.QueueTime = time.Since(start)

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := chatBody(model, req)
	if err != nil {
		return result.fail(start, ErrorTypeHTTP, err)
	}

	execStart := time.Now()
	respBody, err := c.post(ctx, "/chat/completions", body)
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			c.limiter.Record429(rl.RetryAfter)
			return result.fail(start, ErrorTypeRateLimit, err)
		}
		return result.fail(start, ErrorTypeHTTP, err)
	}

	reply, err := parseChatReply(respBody)
	if errors.Is(err, ErrEmptyResponse) {
		return result.fail(start, ErrorTypeEmptyResponse, err)
	}
	if err != nil {
		return result.fail(start, ErrorTypeAPI, err)
	}

	result.Success = true
	result.Content = reply.Content
	result.FinishReason = reply.FinishReason
	result.ModelUsed = reply.Model
	result.PromptTokens = reply.PromptTokens
	result.CompletionTokens = reply.CompletionTokens
	result.TotalTokens = reply.TotalTokens
	result.TotalTime = time.Since(start)

	return result, nil
}

// post makes a single HTTP request to OpenRouter and returns the 200 body.
func (c *OpenRouterClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/radreport")
	req.Header.Set("X-Title", "radreport")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			Message:    fmt.Sprintf("OpenRouter rate limited: %s", string(respBody)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "OpenRouter", StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

// Verify interface
var _ LLMClient = (*OpenRouterClient)(nil)
