package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/simoradar/internal/driver"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the values each search filter accepts",
	Long:  "Opens the interactive search page and prints the labels offered by each filter control.",
	RunE:  runOptions,
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Source.Interactive.URL == "" {
		return fmt.Errorf("source.interactive.url is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := driver.NewInteractiveDriver(newPageOpener(cfg, newHTTPClient(cfg), logger), driver.InteractiveConfig{
		ActionTimeout: cfg.Source.PageTimeout,
	}, logger)
	options, err := d.FilterOptions(ctx)
	if err != nil {
		logger.Error("failed to read filter options", "error", err)
		return err
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	for _, k := range keys {
		printHeading(out, fmt.Sprintf("%s (%d)", k, len(options[k])))
		for _, o := range options[k] {
			fmt.Fprintf(out, "  %s\n", o)
		}
	}
	return nil
}
