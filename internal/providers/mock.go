package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// ErrMockFailure is returned by MockClient when configured to fail.
var ErrMockFailure = errors.New("mock client configured to fail")

// MockReply is one scripted answer. A non-nil Err fails the call.
type MockReply struct {
	Content string
	Err     error
}

// MockClient is an LLMClient for tests and dry runs.
//
// Answers are chosen in this order: Respond, then the Replies script (one
// entry per call, the last entry repeating), then ResponseText.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	FailFirst    int // Fail the first N requests (0 = never)
	ResponseText string
	Replies      []MockReply
	Respond      func(n int, req *ChatRequest) (string, error)

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// NewScriptedClient returns a mock that answers with replies in order.
func NewScriptedClient(replies ...string) *MockClient {
	c := NewMockClient()
	for _, r := range replies {
		c.Replies = append(c.Replies, MockReply{Content: r})
	}
	return c
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := int(c.requestCount.Add(1))

	c.mu.Lock()
	c.requests = append(c.requests, cloneRequest(req))
	c.mu.Unlock()

	requestID := req.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("mock-%d", count)
	}
	result := &ChatResult{
		RequestID: requestID,
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	// Check if we should fail
	if c.ShouldFail {
		return result.fail(start, ErrorTypeMock, ErrMockFailure)
	}
	if c.FailFirst > 0 && count <= c.FailFirst {
		return result.fail(start, ErrorTypeMock, fmt.Errorf("mock request %d failed: %w", count, ErrMockFailure))
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		return result.fail(start, ErrorTypeMock, fmt.Errorf("mock client failed after %d requests: %w", c.FailAfter, ErrMockFailure))
	}

	// Simulate latency
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return result.fail(start, ErrorTypeCancelled, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return result.fail(start, ErrorTypeCancelled, err)
	}

	content, err := c.answer(count, req)
	if err != nil {
		return result.fail(start, ErrorTypeMock, err)
	}

	result.Success = true
	result.Content = content
	result.FinishReason = "stop"
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Simulate token counting
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

func (c *MockClient) answer(n int, req *ChatRequest) (string, error) {
	if c.Respond != nil {
		return c.Respond(n, req)
	}
	if len(c.Replies) > 0 {
		i := n - 1
		if i >= len(c.Replies) {
			i = len(c.Replies) - 1
		}
		return c.Replies[i].Content, c.Replies[i].Err
	}
	return c.ResponseText, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received, in order.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter and history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

func cloneRequest(req *ChatRequest) ChatRequest {
	out := *req
	out.Messages = append([]Message(nil), req.Messages...)
	if req.Options != nil {
		out.Options = make(map[string]any, len(req.Options))
		for k, v := range req.Options {
			out.Options[k] = v
		}
	}
	return out
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
