package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/pipeline"
	"github.com/amishk599/simoradar/internal/progress"
)

var (
	runFilters    map[string]string
	runMaxPages   int
	runNoProgress bool
	runShow       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one acquisition pass",
	Long: `Runs a single pass: pages through the source, extracts and filters every
vacancy, reconciles the matches into the store and records a run log.
Filters from the config file can be overridden with --filter key=value.`,
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringToStringVarP(&runFilters, "filter", "f", nil, "filter override, e.g. --filter department=\"Valle del Cauca\" (repeatable)")
	cmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "stop after this many pages (0 uses the config value)")
	cmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "disable the progress display")
	cmd.Flags().IntVar(&runShow, "show", 0, "print up to N matched vacancies after the pass")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		setupLogger(debug).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if runMaxPages > 0 {
		cfg.Source.MaxPages = runMaxPages
	}
	filters, err := overrideFilters(cfg.Filters, runFilters)
	if err != nil {
		return err
	}

	showProgress := !runNoProgress && progress.IsTerminal(os.Stderr)
	logger := newLogger(os.Stdout, debug, showProgress)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return err
	}
	defer a.Close()

	runner := newLockedRunner(a.runner, cfg.LockFile, logger)
	log, res, err := runWithProgress(ctx, a.orch, runner, filters, showProgress)
	if log.ID == "" {
		// The pass never started.
		return err
	}

	out := cmd.OutOrStdout()
	printRunLog(out, log)
	if runShow > 0 && res != nil && len(res.Records) > 0 {
		printHeading(out, fmt.Sprintf("%d matched vacancies", len(res.Records)))
		printRecords(out, res.Records, runShow)
	}
	return err
}

// runWithProgress runs one pass, feeding the orchestrator's page hook into
// the progress display when one is shown.
func runWithProgress(
	ctx context.Context,
	orch *pipeline.Orchestrator,
	runner *lockedRunner,
	filters model.Filters,
	show bool,
) (model.RunLog, *pipeline.Result, error) {
	var (
		log model.RunLog
		res *pipeline.Result
	)
	if !show {
		return runner.RunPass(ctx, filters)
	}
	err := progress.Run(ctx, os.Stderr, "SIMO "+orch.Source(), func(ctx context.Context, report func(progress.Update)) error {
		orch.SetOnPage(func(p pipeline.PageProgress) {
			report(progress.Update{Page: p.Page, Found: p.Found, Matched: p.Matched})
		})
		defer orch.SetOnPage(nil)

		var err error
		log, res, err = runner.RunPass(ctx, filters)
		return err
	})
	return log, res, err
}

// overrideFilters applies command-line filter overrides on top of base.
// Overrides replace base values key by key.
func overrideFilters(base model.Filters, overrides map[string]string) (model.Filters, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	over, err := model.ParseFilters(overrides)
	if err != nil {
		return base, fmt.Errorf("parse --filter: %w", err)
	}
	return mergeFilters(base, over), nil
}

func mergeFilters(base, over model.Filters) model.Filters {
	merged := base
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&merged.Department, over.Department)
	setString(&merged.City, over.City)
	setString(&merged.ContestType, over.ContestType)
	setString(&merged.Disability, over.Disability)
	setString(&merged.Entity, over.Entity)
	setString(&merged.Level, over.Level)
	setString(&merged.ExternalID, over.ExternalID)
	if over.SalaryMin != nil {
		merged.SalaryMin = over.SalaryMin
	}
	if over.SalaryMax != nil {
		merged.SalaryMax = over.SalaryMax
	}
	if over.IncludeInactive {
		merged.IncludeInactive = true
	}
	return merged
}
