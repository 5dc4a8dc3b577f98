package providers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Error types recorded on ChatResult.ErrorType.
const (
	ErrorTypeHTTP          = "http_error"
	ErrorTypeRateLimit     = "rate_limited"
	ErrorTypeEmptyResponse = "empty_response"
	ErrorTypeAPI           = "api_error"
	ErrorTypeCancelled     = "context_cancelled"
	ErrorTypeMock          = "mock_failure"
)

// ErrEmptyResponse is returned when the endpoint answers without choices.
var ErrEmptyResponse = errors.New("no choices in response")

// StatusError is a non-2xx response from a model endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimitError is a 429 response, optionally carrying Retry-After.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

func asRateLimit(err error, target **RateLimitError) bool {
	return errors.As(err, target)
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
