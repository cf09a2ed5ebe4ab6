package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amishk599/simoradar/internal/filter"
	"github.com/amishk599/simoradar/internal/model"
)

// Count is one row of a grouped tally.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SalaryRange summarizes the published salaries of active jobs.
type SalaryRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Avg  float64 `json:"avg"`
	Jobs int     `json:"jobs"`
}

// Stats is a snapshot of the store. Everything except TotalJobs and
// RecentRuns covers active jobs only.
type Stats struct {
	TotalJobs      int            `json:"total_jobs"`
	ActiveJobs     int            `json:"active_jobs"`
	ByLevel        []Count        `json:"by_level"`
	TopDepartments []Count        `json:"top_departments"`
	Salary         *SalaryRange   `json:"salary,omitempty"`
	RecentRuns     []model.RunLog `json:"recent_runs"`
}

const topDepartments = 10

// Stats computes store statistics. Activity is judged on the closing date
// at now, the same rule the record filter applies.
func (s *DB) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats

	rows, err := s.query(ctx, `SELECT level, department, salary_amount, closing_date FROM jobs`)
	if err != nil {
		return st, fmt.Errorf("reading jobs for stats: %w", err)
	}
	defer rows.Close()

	byLevel := map[string]int{}
	byDept := map[string]int{}
	var salary SalaryRange
	var salarySum float64

	for rows.Next() {
		var (
			rec    model.JobRecord
			amount sql.NullFloat64
		)
		if err := rows.Scan(&rec.Level, &rec.Department, &amount, &rec.ClosingDate); err != nil {
			return st, fmt.Errorf("scanning job for stats: %w", err)
		}
		st.TotalJobs++
		if !filter.Active(rec, now) {
			continue
		}
		st.ActiveJobs++
		byLevel[rec.Level]++
		if rec.Department != "" {
			byDept[rec.Department]++
		}
		if amount.Valid {
			if salary.Jobs == 0 {
				salary.Min, salary.Max = amount.Float64, amount.Float64
			}
			salary.Min = math.Min(salary.Min, amount.Float64)
			salary.Max = math.Max(salary.Max, amount.Float64)
			salarySum += amount.Float64
			salary.Jobs++
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("reading jobs for stats: %w", err)
	}

	st.ByLevel = ranked(byLevel, 0)
	st.TopDepartments = ranked(byDept, topDepartments)
	if salary.Jobs > 0 {
		salary.Avg = salarySum / float64(salary.Jobs)
		st.Salary = &salary
	}

	st.RecentRuns, err = s.ListRuns(ctx, 5)
	if err != nil {
		return st, err
	}
	return st, nil
}

// ranked sorts a tally by count descending, then name. limit 0 keeps all.
func ranked(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
