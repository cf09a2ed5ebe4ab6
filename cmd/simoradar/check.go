package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	checkFilters  map[string]string
	checkMaxPages int
	checkLimit    int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a dry pass, print matches, exit",
	Long:  "Dry run: pages through the source and prints the matched vacancies. Nothing is written to the store or exported.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringToStringVarP(&checkFilters, "filter", "f", nil, "filter override (repeatable)")
	checkCmd.Flags().IntVar(&checkMaxPages, "max-pages", 1, "stop after this many pages (0 for no cap)")
	checkCmd.Flags().IntVar(&checkLimit, "limit", 25, "print at most this many vacancies (0 for all)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.Source.MaxPages = checkMaxPages
	filters, err := overrideFilters(cfg.Filters, checkFilters)
	if err != nil {
		return err
	}

	logger.Info("check mode: nothing will be stored", "max_pages", cfg.Source.MaxPages)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	log, res, err := a.runner.RunPass(ctx, filters)
	out := cmd.OutOrStdout()
	if res != nil && len(res.Records) > 0 {
		printHeading(out, fmt.Sprintf("%d matched vacancies (%d found, %d filtered out)", len(res.Records), log.RecordsFound, res.Filtered))
		printRecords(out, res.Records, checkLimit)
	} else {
		printHeading(out, fmt.Sprintf("no matches (%d found over %d pages)", log.RecordsFound, log.PagesProcessed))
	}
	if err != nil {
		logger.Error("check failed", "error", err)
		return err
	}

	logger.Info("check complete")
	return nil
}
