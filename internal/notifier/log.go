package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/simoradar/internal/model"
)

// Ensure LogReporter implements model.Reporter.
var _ model.Reporter = (*LogReporter)(nil)

// LogReporter writes finished run logs to the given logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter that logs each run via slog.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the run summary at info level, or at error level when the run
// failed. Returns nil (stdout logging does not fail).
func (n *LogReporter) Report(ctx context.Context, log model.RunLog) error {
	args := []any{
		"run_id", log.ID,
		"source", log.Source,
		"start", log.StartedAt,
		"end", log.FinishedAt,
		"pages_processed", log.PagesProcessed,
		"found", log.RecordsFound,
		"new", log.RecordsNew,
		"updated", log.RecordsUpdated,
		"errors", log.Errors,
		"elapsed_seconds", log.ElapsedSeconds,
	}
	if !log.Success {
		n.logger.ErrorContext(ctx, "run failed", append(args, "error_message", log.ErrorMessage)...)
		return nil
	}
	n.logger.InfoContext(ctx, "run complete", args...)
	return nil
}
