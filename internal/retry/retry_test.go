package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counter calls a function on each invocation, tracking call count.
type counter struct {
	calls int
	fn    func(attempt int) (string, error)
}

func (c *counter) call(_ context.Context) (string, error) {
	c.calls++
	return c.fn(c.calls)
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	c := &counter{fn: func(_ int) (string, error) { return "ok", nil }}

	got, err := Do(context.Background(), NewPolicy(2, 10*time.Millisecond, discardLogger()), "page", c.call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q", got)
	}
	if c.calls != 1 {
		t.Fatalf("expected 1 call, got %d", c.calls)
	}
}

func TestDo_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	c := &counter{fn: func(attempt int) (string, error) {
		if attempt == 1 {
			return "", &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return "ok", nil
	}}

	got, err := Do(context.Background(), NewPolicy(2, 10*time.Millisecond, discardLogger()), "page", c.call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || c.calls != 2 {
		t.Fatalf("got %q after %d calls", got, c.calls)
	}
}

func TestDo_DoesNotRetryOn4xx(t *testing.T) {
	c := &counter{fn: func(_ int) (string, error) {
		return "", &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	_, err := Do(context.Background(), NewPolicy(2, 10*time.Millisecond, discardLogger()), "page", c.call)
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", c.calls)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	c := &counter{fn: func(_ int) (string, error) {
		return "", &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	_, err := Do(context.Background(), NewPolicy(2, 10*time.Millisecond, discardLogger()), "page", c.call)
	if err == nil {
		t.Fatal("expected error after max retries, got nil")
	}
	// 1 initial + 2 retries = 3
	if c.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", c.calls)
	}
}

func TestDo_NilPolicySingleAttempt(t *testing.T) {
	c := &counter{fn: func(_ int) (string, error) { return "", errors.New("connection reset") }}

	if _, err := Do(context.Background(), nil, "page", c.call); err == nil {
		t.Fatal("expected error")
	}
	if c.calls != 1 {
		t.Fatalf("expected 1 call, got %d", c.calls)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	c := &counter{fn: func(_ int) (string, error) {
		return "", &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, NewPolicy(2, time.Second, discardLogger()), "page", c.call)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", c.calls)
	}
}

func TestBackoffDelay_HonoursRetryAfter(t *testing.T) {
	p := NewPolicy(2, time.Second, discardLogger())
	err := &model.HTTPError{StatusCode: 429, RetryAfter: 7 * time.Second}
	if got := p.backoffDelay(1, err); got != 7*time.Second {
		t.Errorf("expected Retry-After to win, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", &model.HTTPError{StatusCode: 429}, true},
		{"502", &model.HTTPError{StatusCode: 502}, true},
		{"403", &model.HTTPError{StatusCode: 403}, false},
		{"network", errors.New("dial tcp: connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
