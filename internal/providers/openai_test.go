package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func openAICompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-2024-08-06",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     12,
			"completion_tokens": 5,
			"total_tokens":      17,
		},
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		var payload map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read body: %v", err)
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("unmarshal body: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(openAICompletion("MAIN FINDING: none\nTEMPLATE: OWN"))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				SystemMessage("classify"),
				UserMessage("report"),
			},
			Temperature: Float(0),
			MaxTokens:   256,
			Options:     map[string]any{"seed": 7, "user": "radiology"},
			RequestID:   "req-1",
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Errorf("Success = false: %s", result.ErrorMessage)
		}
		if result.Content != "MAIN FINDING: none\nTEMPLATE: OWN" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.Provider != OpenAIName || result.RequestID != "req-1" {
			t.Errorf("unexpected tracking fields: %+v", result)
		}
		if result.ModelUsed != "gpt-4o-2024-08-06" {
			t.Errorf("ModelUsed = %q", result.ModelUsed)
		}
		if result.PromptTokens != 12 || result.CompletionTokens != 5 || result.TotalTokens != 17 {
			t.Errorf("unexpected token counts: %+v", result)
		}

		if got, _ := payload["model"].(string); got != "gpt-4o" {
			t.Errorf("model = %q, want default gpt-4o", got)
		}
		if temp, ok := payload["temperature"].(float64); !ok || temp != 0 {
			t.Errorf("temperature = %v, want explicit 0", payload["temperature"])
		}
		if got, _ := payload["max_completion_tokens"].(float64); got != 256 {
			t.Errorf("max_completion_tokens = %v", payload["max_completion_tokens"])
		}
		if got, _ := payload["seed"].(float64); got != 7 {
			t.Errorf("seed option not forwarded: %v", payload["seed"])
		}
		if got, _ := payload["user"].(string); got != "radiology" {
			t.Errorf("user option not forwarded: %v", payload["user"])
		}
		msgs, _ := payload["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %v", payload["messages"])
		}
		if role := msgs[0].(map[string]any)["role"]; role != "system" {
			t.Errorf("first role = %v", role)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_exceeded"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{UserMessage("hi")},
		})

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if rl.RetryAfter != 3*time.Second {
			t.Errorf("RetryAfter = %v, want 3s", rl.RetryAfter)
		}
		if result.Success || result.ErrorType != ErrorTypeRateLimit {
			t.Errorf("unexpected result: %+v", result)
		}
		if calls.Load() != 1 {
			t.Errorf("SDK retries should be disabled, got %d calls", calls.Load())
		}
		if client.RateLimiter().Status().Last429Time.IsZero() {
			t.Error("limiter should record the 429")
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{UserMessage("hi")}})

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if se.StatusCode != http.StatusInternalServerError || se.Message != "boom" {
			t.Errorf("unexpected status error: %+v", se)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := openAICompletion("")
			resp["choices"] = []any{}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{UserMessage("hi")}})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Chat(ctx, &ChatRequest{Messages: []Message{UserMessage("hi")}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestOpenAIClient_Config(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	if client.Name() != OpenAIName {
		t.Errorf("Name() = %s", client.Name())
	}
	if client.Model() != "gpt-4o" {
		t.Errorf("Model() = %s", client.Model())
	}
	if client.RateLimiter().Status().TokensLimit != DefaultRequestsPerMinute {
		t.Errorf("unexpected default rate limit")
	}
}

// TestOpenAIIntegration runs a real call against the OpenAI API.
// Requires OPENAI_API_KEY environment variable to be set.
func TestOpenAIIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasOpenAI() {
		t.Skip("OPENAI_API_KEY not set - skipping integration test")
	}

	client := NewOpenAIClient(OpenAIConfig{APIKey: cfg.OpenAIAPIKey})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Chat(ctx, &ChatRequest{
		Messages:    []Message{UserMessage("Say 'hello' and nothing else.")},
		MaxTokens:   10,
		Temperature: Float(0),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content == "" {
		t.Error("expected non-empty content")
	}
	t.Logf("Response: %q (model %s, %d tokens)", result.Content, result.ModelUsed, result.TotalTokens)
}
