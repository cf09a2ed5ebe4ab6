package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/amishk599/simoradar/internal/model"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printHeading(w io.Writer, s string) {
	fmt.Fprintln(w, headingStyle.Render(s))
}

func formatSalary(v *float64) string {
	if v == nil {
		return "-"
	}
	return "$" + humanize.Comma(int64(*v))
}

func formatStatus(l model.RunLog) string {
	if l.Success {
		return okStyle.Render("ok")
	}
	return failStyle.Render("failed")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printRunLog renders one run log as a two-column summary.
func printRunLog(w io.Writer, l model.RunLog) {
	t := newTable("Run", l.ID).Rows(
		[]string{"Source", l.Source},
		[]string{"Status", formatStatus(l)},
		[]string{"Started", formatTime(l.StartedAt)},
		[]string{"Elapsed", fmt.Sprintf("%.1fs", l.ElapsedSeconds)},
		[]string{"Pages", fmt.Sprint(l.PagesProcessed)},
		[]string{"Found", fmt.Sprint(l.RecordsFound)},
		[]string{"New", fmt.Sprint(l.RecordsNew)},
		[]string{"Updated", fmt.Sprint(l.RecordsUpdated)},
		[]string{"Errors", fmt.Sprint(l.Errors)},
		[]string{"Extraction failures", fmt.Sprint(l.ExtractionFailures)},
	)
	if l.ErrorMessage != "" {
		t.Row("Error", truncate(l.ErrorMessage, 80))
	}
	fmt.Fprintln(w, t)
}

// printRecords renders matched vacancies, at most limit rows (0 for all).
func printRecords(w io.Writer, recs []model.JobRecord, limit int) {
	t := newTable("ID", "Title", "Level", "Entity", "Location", "Salary", "Closes")
	shown := recs
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		location := r.Department
		if r.Municipality != "" {
			location = r.Municipality + ", " + r.Department
		}
		t.Row(
			r.ExternalID,
			truncate(r.Title, 40),
			orDash(r.Level),
			truncate(orDash(r.EntityName), 40),
			truncate(orDash(location), 30),
			formatSalary(r.SalaryAmount),
			orDash(r.ClosingDate),
		)
	}
	fmt.Fprintln(w, t)
	if len(shown) < len(recs) {
		fmt.Fprintf(w, "… and %d more\n", len(recs)-len(shown))
	}
}
