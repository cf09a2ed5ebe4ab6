package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRun(success bool) model.RunLog {
	start := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	l := model.RunLog{
		ID:             "run-1",
		Source:         "resource",
		StartedAt:      start,
		FinishedAt:     start.Add(95 * time.Second),
		PagesProcessed: 105,
		RecordsFound:   5220,
		RecordsNew:     40,
		RecordsUpdated: 5180,
		Success:        success,
		ElapsedSeconds: 95,
	}
	if !success {
		l.ErrorMessage = "acquisition aborted on page 0: total count unavailable"
	}
	return l
}

func TestSlackReporter_Success(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), false, discardLogger())
	if err := r.Report(context.Background(), sampleRun(true)); err != nil {
		t.Fatalf("Report() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if len(payload.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(payload.Blocks))
	}
	if payload.Blocks[0].Text.Text != "✅ SIMO run complete" {
		t.Errorf("header text = %q", payload.Blocks[0].Text.Text)
	}
	if f := payload.Blocks[2].Fields[0].Text; f != "*Found:*\n5220" {
		t.Errorf("found field = %q", f)
	}
	if f := payload.Blocks[1].Fields[3].Text; f != "*Elapsed:*\n95.0s" {
		t.Errorf("elapsed field = %q", f)
	}
	if payload.Blocks[3].Type != "divider" {
		t.Errorf("block[3] type = %q, want divider", payload.Blocks[3].Type)
	}
}

func TestSlackReporter_FailureIncludesMessage(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), true, discardLogger())
	if err := r.Report(context.Background(), sampleRun(false)); err != nil {
		t.Fatalf("Report() = %v", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(payload.Blocks))
	}
	if payload.Blocks[0].Text.Text != "❌ SIMO run failed" {
		t.Errorf("header text = %q", payload.Blocks[0].Text.Text)
	}
	want := "*Error:*\n```acquisition aborted on page 0: total count unavailable```"
	if payload.Blocks[3].Text.Text != want {
		t.Errorf("error block = %q", payload.Blocks[3].Text.Text)
	}
}

func TestSlackReporter_OnlyErrorsSkipsSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), true, discardLogger())
	if err := r.Report(context.Background(), sampleRun(true)); err != nil {
		t.Fatalf("Report() = %v", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackReporter_SlackReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), false, discardLogger())
	if err := r.Report(context.Background(), sampleRun(true)); err == nil {
		t.Error("expected error on 500, got nil")
	}
}

func TestSlackReporter_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := calls.Add(1)
		if c == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), false, discardLogger())
	if err := r.Report(context.Background(), sampleRun(true)); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackReporter_RateLimitWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := NewSlackReporter(srv.URL, srv.Client(), false, discardLogger())
	start := time.Now()
	if err := r.Report(ctx, sampleRun(true)); err == nil {
		t.Error("expected context error, got nil")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("reporter ignored context cancellation while rate limited")
	}
}

func TestSendTestMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := SendTestMessage(context.Background(), NewSlackReporter(srv.URL, srv.Client(), false, discardLogger())); err != nil {
		t.Fatalf("SendTestMessage: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one post, got %d", calls.Load())
	}
}
