// Package retry provides the bounded retry policy wrapped around a dialogue.
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

const (
	// DefaultMaxAttempts is the total number of attempts, including the first.
	DefaultMaxAttempts = 10
	// DefaultDelay is the fixed pause between attempts.
	DefaultDelay = 10 * time.Second
)

// Timer abstracts waiting so tests can run without real sleeps.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

// Policy describes how a unit of work is retried.
// The zero value is usable and behaves like Default().
type Policy struct {
	// MaxAttempts is the total number of attempts (0 = DefaultMaxAttempts).
	MaxAttempts uint
	// Delay is the fixed pause between attempts. No pause follows the final attempt.
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil uses DefaultRetryable.
	Retryable func(error) bool
	// OnRetry is called after each failed attempt with a retryable error,
	// including the final one.
	OnRetry func(attempt uint, err error)
	// Timer replaces the real clock (tests).
	Timer Timer
}

// Default returns the standard dialogue policy: 10 attempts, 10s apart.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// DefaultRetryable retries everything except cancellation and permanent errors.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return retrygo.IsRecoverable(err)
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return retrygo.Unrecoverable(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return !retrygo.IsRecoverable(err)
}

// Attempts returns the effective attempt limit.
func (p Policy) Attempts() uint {
	if p.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// limit is reached. fn receives the 1-based attempt number. The returned
// count is the number of attempts made; the error is the last one seen.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt uint) error) (uint, error) {
	var attempts uint

	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(p.Attempts()),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(retryable),
	}
	if p.OnRetry != nil {
		opts = append(opts, retrygo.OnRetry(func(n uint, err error) {
			p.OnRetry(n+1, err)
		}))
	}
	if p.Timer != nil {
		opts = append(opts, retrygo.WithTimer(p.Timer))
	}

	err := retrygo.Do(func() error {
		attempts++
		return fn(ctx, attempts)
	}, opts...)

	return attempts, err
}
