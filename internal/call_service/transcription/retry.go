package transcription

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RetryPolicy retries an operation on transient failures with exponentially
// increasing delay. It is scoped to the transcription pipeline only; no other
// outbound call in the service is retried.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles each retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries 3 times (4 attempts total) starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}
}

// WorstCase returns the longest Do can run when every attempt takes
// perAttempt and fails transiently until the policy is exhausted. Callers
// size request timeouts around it.
func (p RetryPolicy) WorstCase(perAttempt time.Duration) time.Duration {
	total := perAttempt
	delay := p.BaseDelay
	for i := 0; i < p.MaxRetries; i++ {
		total += delay + perAttempt
		delay *= 2
	}
	return total
}

// statusError marks a failure with the upstream HTTP status attached so the
// policy can classify it.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.code, e.body)
}

// isTransient reports whether err is worth another attempt: a server-side
// 5xx or a connection/timeout error. 4xx responses and malformed payloads
// are permanent.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Do runs op, retrying transient failures until the policy is exhausted.
// Delays respect ctx cancellation. It returns the number of attempts made
// and the last error, nil on success.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	delay := p.BaseDelay
	attempts := 0
	for {
		attempts++
		err := op(ctx)
		if err == nil {
			return attempts, nil
		}
		if !isTransient(err) || attempts > p.MaxRetries {
			return attempts, err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
		delay *= 2
	}
}
