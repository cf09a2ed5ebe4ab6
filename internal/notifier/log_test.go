package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogReporter_Success(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := r.Report(context.Background(), sampleRun(true)); err != nil {
		t.Errorf("Report() = %v, want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, `msg="run complete"`) || !strings.Contains(out, "found=5220") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestLogReporter_FailureLogsError(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := r.Report(context.Background(), sampleRun(false)); err != nil {
		t.Errorf("Report() = %v, want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "total count unavailable") {
		t.Errorf("unexpected log output: %s", out)
	}
}
