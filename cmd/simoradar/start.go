package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/simoradar/internal/config"
	"github.com/amishk599/simoradar/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the acquisition daemon",
	Long:  "Start the scheduler daemon; runs every configured search once per interval and blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	searches := searchesFor(cfg)
	logger.Info("config loaded",
		"source", cfg.Source.Driver,
		"interval", cfg.Interval.String(),
		"searches", len(searches),
		"store", cfg.Store.Driver,
		"max_pages", cfg.Source.MaxPages,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	runner := newLockedRunner(a.runner, cfg.LockFile, logger)
	sched := scheduler.NewScheduler(runner, searches, cfg.Interval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// searchesFor returns the daemon's search list: the configured searches, or
// the top-level filters as a single search.
func searchesFor(cfg *config.Config) []scheduler.Search {
	if len(cfg.Searches) == 0 {
		return []scheduler.Search{{Name: "default", Filters: cfg.Filters}}
	}
	searches := make([]scheduler.Search, 0, len(cfg.Searches))
	for _, s := range cfg.Searches {
		searches = append(searches, scheduler.Search{Name: s.Name, Filters: s.Filters})
	}
	return searches
}
