package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/amishk599/simoradar/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored vacancies",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	st, err := db.Stats(ctx, time.Now())
	if err != nil {
		return err
	}

	printStats(cmd.OutOrStdout(), st)
	return nil
}

func printStats(out io.Writer, st store.Stats) {
	printHeading(out, fmt.Sprintf("%s vacancies stored, %s active",
		humanize.Comma(int64(st.TotalJobs)), humanize.Comma(int64(st.ActiveJobs))))

	if st.Salary != nil {
		fmt.Fprintf(out, "salary over %d active vacancies: min $%s · avg $%s · max $%s\n",
			st.Salary.Jobs,
			humanize.Comma(int64(st.Salary.Min)),
			humanize.Comma(int64(st.Salary.Avg)),
			humanize.Comma(int64(st.Salary.Max)),
		)
	}

	if len(st.ByLevel) > 0 {
		t := newTable("Level", "Active")
		for _, c := range st.ByLevel {
			t.Row(orDash(c.Name), humanize.Comma(int64(c.Count)))
		}
		fmt.Fprintln(out, t)
	}

	if len(st.TopDepartments) > 0 {
		t := newTable("Department", "Active")
		for _, c := range st.TopDepartments {
			t.Row(orDash(c.Name), humanize.Comma(int64(c.Count)))
		}
		fmt.Fprintln(out, t)
	}

	if len(st.RecentRuns) > 0 {
		printHeading(out, "recent runs")
		t := newTable("Started", "Status", "Found", "New", "Updated", "Errors")
		for _, r := range st.RecentRuns {
			t.Row(formatTime(r.StartedAt), formatStatus(r), fmt.Sprint(r.RecordsFound),
				fmt.Sprint(r.RecordsNew), fmt.Sprint(r.RecordsUpdated), fmt.Sprint(r.Errors))
		}
		fmt.Fprintln(out, t)
	}
}
