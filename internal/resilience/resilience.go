//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package resilience wraps calls to external capabilities with bounded
// retry, exponential backoff, and error classification.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Policy controls retry behavior for a wrapped call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. The delay doubles on
	// each retry until it reaches this cap.
	MaxBackoff time.Duration
}

// DefaultPolicy returns the standard retry policy for upstream calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
	}
}

// normalize fills in zero policy fields with defaults.
func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	return p
}

// HTTPError is an error response from an upstream HTTP API. Clients return
// it for any non-2xx status so the wrapper can classify the failure.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// UpstreamError is raised when a named external capability fails, either
// permanently or after exhausting retries. It propagates to the caller
// unchanged; the orchestrator never retries it again.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream service %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether an error is transient: a network or connection
// failure, a timeout, or an upstream 429/5xx response. Everything else
// (other 4xx statuses, malformed responses, unknown failures) is permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Per-call timeouts classify as transient network failures.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Do invokes fn with the given retry policy, retrying transient failures
// with exponential backoff. Permanent failures and retry exhaustion are
// wrapped into an UpstreamError naming the capability.
func Do[T any](
	ctx context.Context,
	service string,
	policy Policy,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	policy = policy.normalize()

	var lastErr error
	backoff := policy.InitialBackoff

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, &UpstreamError{Service: service, Err: err}
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, &UpstreamError{Service: service, Err: ctx.Err()}
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return zero, &UpstreamError{Service: service, Err: lastErr}
}
