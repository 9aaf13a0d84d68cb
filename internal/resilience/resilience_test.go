//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

// fastPolicy keeps test backoffs in the microsecond range.
func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     8 * time.Microsecond,
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 500", &HTTPError{StatusCode: 500}, true},
		{"status 503", &HTTPError{StatusCode: 503}, true},
		{"status 429", &HTTPError{StatusCode: 429}, true},
		{"status 404", &HTTPError{StatusCode: 404}, false},
		{"status 400", &HTTPError{StatusCode: 400}, false},
		{"status 401", &HTTPError{StatusCode: 401}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"net timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("malformed response"), false},
		{
			"wrapped 502",
			fmt.Errorf("request: %w", &HTTPError{StatusCode: 502}),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "groq", fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result ok, got %q", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesServerErrorsUntilExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), "pinecone", fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 500, Message: "boom"}
		})
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstream.Service != "pinecone" {
		t.Errorf("expected service pinecone, got %q", upstream.Service)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
		t.Errorf("expected wrapped 500, got %v", err)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "groq", fastPolicy(),
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &HTTPError{StatusCode: 429, Message: "slow down"}
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoFailsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), "tavily", fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 404, Message: "not found"}
		})
	if calls != 1 {
		t.Errorf("expected 1 attempt for permanent error, got %d", calls)
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if upstream.Service != "tavily" {
		t.Errorf("expected service tavily, got %q", upstream.Service)
	}
}

func TestDoBackoffIncreases(t *testing.T) {
	policy := Policy{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     16 * time.Millisecond,
	}

	var timestamps []time.Time
	_, err := Do(context.Background(), "groq", policy,
		func(ctx context.Context) (string, error) {
			timestamps = append(timestamps, time.Now())
			return "", &HTTPError{StatusCode: 503}
		})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(timestamps) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(timestamps))
	}

	// Gaps should not shrink: 2ms, 4ms, 8ms.
	for i := 1; i < len(timestamps)-1; i++ {
		prev := timestamps[i].Sub(timestamps[i-1])
		next := timestamps[i+1].Sub(timestamps[i])
		if next < prev {
			t.Errorf("backoff decreased between attempts: %v then %v", prev, next)
		}
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Hour, // would hang without cancellation
		MaxBackoff:     time.Hour,
	}

	_, err := Do(ctx, "groq", policy,
		func(ctx context.Context) (string, error) {
			calls++
			cancel()
			return "", &HTTPError{StatusCode: 500}
		})
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}
