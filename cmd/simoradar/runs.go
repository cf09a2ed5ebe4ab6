package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent acquisition runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded yet")
		return nil
	}

	t := newTable("Started", "Source", "Status", "Pages", "Found", "New", "Updated", "Errors", "Elapsed", "Run")
	for _, r := range runs {
		t.Row(
			formatTime(r.StartedAt),
			r.Source,
			formatStatus(r),
			fmt.Sprint(r.PagesProcessed),
			fmt.Sprint(r.RecordsFound),
			fmt.Sprint(r.RecordsNew),
			fmt.Sprint(r.RecordsUpdated),
			fmt.Sprint(r.Errors),
			fmt.Sprintf("%.1fs", r.ElapsedSeconds),
			r.ID,
		)
	}
	fmt.Fprintln(out, t)
	return nil
}
