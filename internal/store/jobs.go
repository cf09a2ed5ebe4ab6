package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

// ErrNotFound is returned when a job is not in the store.
var ErrNotFound = errors.New("not found")

// Job is a persisted JobRecord with its bookkeeping columns.
type Job struct {
	model.JobRecord
	ID         int64
	CreatedAt  time.Time
	UpdatedAt  *time.Time // nil until the first update
	LastSeenAt time.Time
	LastRunID  string
}

// Tx is a write transaction. Savepoints scope failures to a single record.
type Tx struct {
	tx *sql.Tx
	d  dialect
}

// Begin starts a write transaction.
func (s *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, d: s.d}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Savepoint marks a point the transaction can roll back to.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

// RollbackTo undoes everything since the named savepoint and releases it.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}
	return t.Release(ctx, name)
}

// Release keeps the work since the named savepoint.
func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

type refs struct {
	entity, department, municipality, process sql.NullInt64
}

// UpsertJob inserts rec or, when its external id already exists, overwrites
// every field of the stored row. It reports whether the row is new.
// A unique violation on insert (a concurrent writer won) becomes an update.
func (t *Tx) UpsertJob(ctx context.Context, runID string, rec model.JobRecord, now time.Time) (bool, error) {
	r, err := t.resolveRefs(ctx, rec)
	if err != nil {
		return false, err
	}

	if err := t.Savepoint(ctx, "job_insert"); err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	err = t.insertJob(ctx, runID, rec, r, now)
	if err == nil {
		return true, t.Release(ctx, "job_insert")
	}
	if !t.d.unique(err) {
		t.RollbackTo(ctx, "job_insert")
		return false, fmt.Errorf("inserting job %s: %w", rec.ExternalID, err)
	}
	if err := t.RollbackTo(ctx, "job_insert"); err != nil {
		return false, fmt.Errorf("rollback to savepoint: %w", err)
	}

	if err := t.updateJob(ctx, runID, rec, r, now); err != nil {
		return false, err
	}
	return false, nil
}

const jobColumns = `title, level, grade, code,
	entity_name, entity_tax_id, entity_type,
	process_name, process_code, process_year, process_type,
	department, municipality, dependency, salary_amount,
	vacancy_count, vacancy_available,
	study_requirement, experience_requirement, other_requirements, duties,
	disability_reserved, promotion_contest, closing_date,
	entity_id, department_id, municipality_id, process_id`

func jobValues(rec model.JobRecord, r refs) []any {
	return []any{
		rec.Title, rec.Level, rec.Grade, rec.Code,
		rec.EntityName, rec.EntityTaxID, rec.EntityType,
		rec.ProcessName, rec.ProcessCode, rec.ProcessYear, rec.ProcessType,
		rec.Department, rec.Municipality, rec.Dependency, nullFloat(rec.SalaryAmount),
		rec.VacancyCount, rec.VacancyAvailable,
		rec.StudyRequirement, rec.ExperienceRequirement, rec.OtherRequirements, rec.Duties,
		rec.DisabilityReserved, rec.PromotionContest, rec.ClosingDate,
		r.entity, r.department, r.municipality, r.process,
	}
}

func (t *Tx) insertJob(ctx context.Context, runID string, rec model.JobRecord, r refs, now time.Time) error {
	acquired := rec.AcquiredAt
	if acquired.IsZero() {
		acquired = now
	}
	args := append([]any{rec.ExternalID}, jobValues(rec, r)...)
	args = append(args, acquired.UTC(), now.UTC(), now.UTC(), runID)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err := t.exec(ctx, `INSERT INTO jobs (external_id, `+jobColumns+`,
		acquired_at, created_at, last_seen_at, last_run_id)
		VALUES (`+placeholders+`)`, args...)
	return err
}

func (t *Tx) updateJob(ctx context.Context, runID string, rec model.JobRecord, r refs, now time.Time) error {
	var set strings.Builder
	for i, col := range strings.Split(jobColumns, ",") {
		if i > 0 {
			set.WriteString(", ")
		}
		set.WriteString(strings.TrimSpace(col))
		set.WriteString(" = ?")
	}
	args := append(jobValues(rec, r), now.UTC(), now.UTC(), runID, rec.ExternalID)

	res, err := t.exec(ctx, `UPDATE jobs SET `+set.String()+`,
		updated_at = ?, last_seen_at = ?, last_run_id = ?
		WHERE external_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", rec.ExternalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating job %s: %w", rec.ExternalID, ErrNotFound)
	}
	return nil
}

// resolveRefs get-or-creates the lookup rows the record points at.
// Entities are keyed by tax id, or by name when the tax id is missing.
func (t *Tx) resolveRefs(ctx context.Context, rec model.JobRecord) (refs, error) {
	var r refs
	var err error

	if rec.EntityName != "" {
		key := "nit:" + rec.EntityTaxID
		if rec.EntityTaxID == "" {
			key = "name:" + rec.EntityName
		}
		r.entity, err = t.getOrCreate(ctx, "entities",
			`INSERT INTO entities (lookup_key, name, tax_id, entity_type) VALUES (?, ?, ?, ?)
			ON CONFLICT (lookup_key) DO NOTHING`,
			[]any{key, rec.EntityName, rec.EntityTaxID, rec.EntityType},
			`SELECT id FROM entities WHERE lookup_key = ?`, key)
		if err != nil {
			return r, err
		}
	}

	if rec.Department != "" {
		r.department, err = t.getOrCreate(ctx, "departments",
			`INSERT INTO departments (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
			[]any{rec.Department},
			`SELECT id FROM departments WHERE name = ?`, rec.Department)
		if err != nil {
			return r, err
		}
		if rec.Municipality != "" {
			dept := r.department.Int64
			r.municipality, err = t.getOrCreate(ctx, "municipalities",
				`INSERT INTO municipalities (department_id, name) VALUES (?, ?)
				ON CONFLICT (department_id, name) DO NOTHING`,
				[]any{dept, rec.Municipality},
				`SELECT id FROM municipalities WHERE department_id = ? AND name = ?`, dept, rec.Municipality)
			if err != nil {
				return r, err
			}
		}
	}

	if rec.ProcessName != "" {
		key := "name:" + rec.ProcessName
		if rec.ProcessCode != "" {
			key = "code:" + rec.ProcessCode
		}
		r.process, err = t.getOrCreate(ctx, "processes",
			`INSERT INTO processes (lookup_key, name, code, year, process_type) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (lookup_key) DO NOTHING`,
			[]any{key, rec.ProcessName, rec.ProcessCode, rec.ProcessYear, rec.ProcessType},
			`SELECT id FROM processes WHERE lookup_key = ?`, key)
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func (t *Tx) getOrCreate(ctx context.Context, table, insert string, insertArgs []any, sel string, selArgs ...any) (sql.NullInt64, error) {
	var id sql.NullInt64
	if _, err := t.exec(ctx, insert, insertArgs...); err != nil {
		return id, fmt.Errorf("creating %s row: %w", table, err)
	}
	if err := t.queryRow(ctx, sel, selArgs...).Scan(&id); err != nil {
		return id, fmt.Errorf("looking up %s row: %w", table, err)
	}
	return id, nil
}

// GetJob returns the stored job with the given external id.
func (s *DB) GetJob(ctx context.Context, externalID string) (Job, error) {
	var (
		j         Job
		salary    sql.NullFloat64
		updatedAt sql.NullTime
		ignored   [4]sql.NullInt64
	)
	rec := &j.JobRecord
	err := s.queryRow(ctx, `SELECT id, external_id, `+jobColumns+`,
		acquired_at, created_at, updated_at, last_seen_at, last_run_id
		FROM jobs WHERE external_id = ?`, externalID).Scan(
		&j.ID, &rec.ExternalID,
		&rec.Title, &rec.Level, &rec.Grade, &rec.Code,
		&rec.EntityName, &rec.EntityTaxID, &rec.EntityType,
		&rec.ProcessName, &rec.ProcessCode, &rec.ProcessYear, &rec.ProcessType,
		&rec.Department, &rec.Municipality, &rec.Dependency, &salary,
		&rec.VacancyCount, &rec.VacancyAvailable,
		&rec.StudyRequirement, &rec.ExperienceRequirement, &rec.OtherRequirements, &rec.Duties,
		&rec.DisabilityReserved, &rec.PromotionContest, &rec.ClosingDate,
		&ignored[0], &ignored[1], &ignored[2], &ignored[3],
		&rec.AcquiredAt, &j.CreatedAt, &updatedAt, &j.LastSeenAt, &j.LastRunID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("reading job %s: %w", externalID, err)
	}
	if salary.Valid {
		v := salary.Float64
		rec.SalaryAmount = &v
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		j.UpdatedAt = &t
	}
	return j, nil
}

// CountJobs returns the number of stored jobs.
func (s *DB) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
