package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/simoradar/internal/model"
)

// Exporter writes the document of a finished pass outside the database.
type Exporter interface {
	Export(log model.RunLog, records []model.JobRecord) error
}

// Runner owns a full pass: acquire → reconcile → persist the run log →
// export → report.
type Runner struct {
	orch      *Orchestrator
	sink      model.RecordSink
	runs      model.RunLogStore
	exporter  Exporter
	reporters []model.Reporter
	now       func() time.Time
	logger    *slog.Logger
}

// NewRunner creates a runner. exporter may be nil.
func NewRunner(
	orch *Orchestrator,
	sink model.RecordSink,
	runs model.RunLogStore,
	exporter Exporter,
	reporters []model.Reporter,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		orch:      orch,
		sink:      sink,
		runs:      runs,
		exporter:  exporter,
		reporters: reporters,
		now:       time.Now,
		logger:    logger,
	}
}

// RunPass executes one pass with filters. The run log is finalized and
// appended exactly once whatever the outcome, including cancellation.
// Records are reconciled only when acquisition completed.
func (r *Runner) RunPass(ctx context.Context, filters model.Filters) (model.RunLog, *Result, error) {
	runLog := model.RunLog{
		ID:        uuid.NewString(),
		Source:    r.orch.Source(),
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.With("run_id", runLog.ID, "source", runLog.Source)
	logger.Info("pass started")

	res, err := r.orch.Run(ctx, filters)
	runLog.PagesProcessed = res.Pages
	runLog.RecordsFound = res.Found
	runLog.ExtractionFailures = res.ExtractionFailures
	runLog.Errors = res.PageErrors

	if err == nil && len(res.Records) > 0 {
		stats, serr := r.sink.BulkUpsert(ctx, runLog.ID, res.Records)
		runLog.RecordsNew = stats.New
		runLog.RecordsUpdated = stats.Updated
		runLog.Errors += stats.Errors
		if serr != nil {
			err = fmt.Errorf("reconcile: %w", serr)
		}
	}

	runLog.Finalize(r.now().UTC(), err)

	// The pass may have been cancelled; bookkeeping must still land.
	bg := context.WithoutCancel(ctx)
	if aerr := r.runs.AppendRunLog(bg, runLog); aerr != nil {
		logger.Error("failed to persist run log", "error", aerr)
		if err == nil {
			err = fmt.Errorf("persist run log: %w", aerr)
		}
	}

	if r.exporter != nil && res.State == StateDone {
		if xerr := r.exporter.Export(runLog, res.Records); xerr != nil {
			logger.Error("export failed", "error", xerr)
		}
	}

	for _, rep := range r.reporters {
		if rerr := rep.Report(bg, runLog); rerr != nil {
			logger.Error("run report failed", "error", rerr)
		}
	}

	logger.Info("pass finished",
		"success", runLog.Success,
		"pages", runLog.PagesProcessed,
		"found", runLog.RecordsFound,
		"matched", len(res.Records),
		"new", runLog.RecordsNew,
		"updated", runLog.RecordsUpdated,
		"errors", runLog.Errors,
		"elapsed", time.Duration(runLog.ElapsedSeconds*float64(time.Second)).Round(time.Millisecond),
	)
	return runLog, res, err
}
