package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/pipeline"
)

// PassRunner runs one acquisition pass for a filter set.
type PassRunner interface {
	RunPass(ctx context.Context, filters model.Filters) (model.RunLog, *pipeline.Result, error)
}

// Search is a named filter set the scheduler runs every cycle.
type Search struct {
	Name    string
	Filters model.Filters
}

// Scheduler owns the daemon loop: ticks on an interval and runs each search
// sequentially. Passes never overlap.
type Scheduler struct {
	runner   PassRunner
	searches []Search
	interval time.Duration
	pause    time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs all searches at the given interval.
func NewScheduler(runner PassRunner, searches []Search, interval time.Duration, logger *slog.Logger) *Scheduler {
	if len(searches) == 0 {
		searches = []Search{{Name: "default"}}
	}
	return &Scheduler{
		runner:   runner,
		searches: searches,
		interval: interval,
		pause:    time.Second,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"searches", len(s.searches),
	)

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runAll(ctx)
		}
	}
}

// runAll runs each search in order with a small pause between them.
func (s *Scheduler) runAll(ctx context.Context) {
	for i, search := range s.searches {
		if ctx.Err() != nil {
			return
		}

		log, _, err := s.runner.RunPass(ctx, search.Filters)
		if err != nil {
			s.logger.Error("pass failed",
				"search", search.Name,
				"run_id", log.ID,
				"error", err,
			)
		}

		// Be polite to the source between searches, except after the last one.
		if i < len(s.searches)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pause):
			}
		}
	}
}
