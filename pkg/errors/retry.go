// Package errors provides retry logic for provider calls
package errors

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/kart-io/clawprobe/pkg/logger"
)

// RetryPolicy defines how operations should be retried
type RetryPolicy interface {
	// ShouldRetry determines if an error should be retried after the given attempt (1-based)
	ShouldRetry(err error, attempt int) bool

	// RetryDelay calculates the delay before the next retry
	RetryDelay(attempt int) time.Duration

	// MaxAttempts returns the total number of attempts, including the first
	MaxAttempts() int
}

// ExponentialBackoffPolicy implements exponential backoff with jitter
type ExponentialBackoffPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
	Attempts   int
}

// NewExponentialBackoffPolicy creates a new exponential backoff policy
func NewExponentialBackoffPolicy(baseDelay, maxDelay time.Duration, maxAttempts int) *ExponentialBackoffPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ExponentialBackoffPolicy{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
		Jitter:     0.1,
		Attempts:   maxAttempts,
	}
}

// ShouldRetry determines if an error should be retried
func (p *ExponentialBackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.Attempts {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRetryableError(err)
}

// RetryDelay calculates the delay before the next retry
func (p *ExponentialBackoffPolicy) RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	if p.Jitter > 0 {
		delay += delay * p.Jitter * (rand.Float64()*2 - 1)
	}

	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}

// MaxAttempts returns the maximum number of attempts
func (p *ExponentialBackoffPolicy) MaxAttempts() int {
	return p.Attempts
}

// RetryExecutor handles the execution of retryable operations
type RetryExecutor struct {
	policy RetryPolicy
	logger logger.Logger
}

// NewRetryExecutor creates a new retry executor
func NewRetryExecutor(policy RetryPolicy, log logger.Logger) *RetryExecutor {
	return &RetryExecutor{
		policy: policy,
		logger: logger.OrDiscard(log),
	}
}

// Execute runs operation until it succeeds, the policy gives up, or ctx is done.
// The returned error is the last operation error (or ctx.Err()).
func (r *RetryExecutor) Execute(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts(); attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				r.logger.Debug("Operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if !r.policy.ShouldRetry(err, attempt) {
			break
		}

		delay := r.policy.RetryDelay(attempt)
		r.logger.Debug("Operation failed, retrying",
			"error", err.Error(),
			"attempt", attempt,
			"next_delay", delay,
			"max_attempts", r.policy.MaxAttempts())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// DefaultRetryPolicy returns the policy used for Feishu API calls: the first
// attempt plus maxRetries retries, backing off from 100ms up to 5s
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return NewExponentialBackoffPolicy(100*time.Millisecond, 5*time.Second, maxRetries+1)
}
