package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Config selects and locates the database.
type Config struct {
	Driver string // sqlite (default) or postgres
	Path   string // sqlite file
	DSN    string // postgres connection string
}

// DB is the record and run-log store on top of SQLite or Postgres.
type DB struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id          {{pk}},
		lookup_key  TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		tax_id      TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS departments (
		id   {{pk}},
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS municipalities (
		id            {{pk}},
		department_id {{ref}} NOT NULL REFERENCES departments(id),
		name          TEXT NOT NULL,
		UNIQUE (department_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS processes (
		id           {{pk}},
		lookup_key   TEXT NOT NULL UNIQUE,
		name         TEXT NOT NULL,
		code         TEXT NOT NULL DEFAULT '',
		year         INTEGER NOT NULL DEFAULT 0,
		process_type TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id                     {{pk}},
		external_id            TEXT NOT NULL UNIQUE CHECK (external_id <> ''),
		title                  TEXT NOT NULL DEFAULT '',
		level                  TEXT NOT NULL DEFAULT '',
		grade                  TEXT NOT NULL DEFAULT '',
		code                   TEXT NOT NULL DEFAULT '',
		entity_name            TEXT NOT NULL DEFAULT '',
		entity_tax_id          TEXT NOT NULL DEFAULT '',
		entity_type            TEXT NOT NULL DEFAULT '',
		process_name           TEXT NOT NULL DEFAULT '',
		process_code           TEXT NOT NULL DEFAULT '',
		process_year           INTEGER NOT NULL DEFAULT 0,
		process_type           TEXT NOT NULL DEFAULT '',
		department             TEXT NOT NULL DEFAULT '',
		municipality           TEXT NOT NULL DEFAULT '',
		dependency             TEXT NOT NULL DEFAULT '',
		salary_amount          {{float}},
		vacancy_count          INTEGER NOT NULL DEFAULT 0,
		vacancy_available      INTEGER NOT NULL DEFAULT 0,
		study_requirement      TEXT NOT NULL DEFAULT '',
		experience_requirement TEXT NOT NULL DEFAULT '',
		other_requirements     TEXT NOT NULL DEFAULT '',
		duties                 TEXT NOT NULL DEFAULT '',
		disability_reserved    BOOLEAN NOT NULL DEFAULT FALSE,
		promotion_contest      BOOLEAN NOT NULL DEFAULT FALSE,
		closing_date           TEXT NOT NULL DEFAULT '',
		entity_id              {{ref}} REFERENCES entities(id),
		department_id          {{ref}} REFERENCES departments(id),
		municipality_id        {{ref}} REFERENCES municipalities(id),
		process_id             {{ref}} REFERENCES processes(id),
		acquired_at            {{ts}} NOT NULL,
		created_at             {{ts}} NOT NULL,
		updated_at             {{ts}},
		last_seen_at           {{ts}} NOT NULL,
		last_run_id            TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_level_department ON jobs (level, department)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_salary ON jobs (salary_amount)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_last_run ON jobs (last_run_id)`,
	`CREATE TABLE IF NOT EXISTS run_logs (
		id                  TEXT PRIMARY KEY,
		source              TEXT NOT NULL DEFAULT '',
		started_at          {{ts}} NOT NULL,
		finished_at         {{ts}} NOT NULL,
		pages_processed     INTEGER NOT NULL DEFAULT 0,
		records_found       INTEGER NOT NULL DEFAULT 0,
		records_new         INTEGER NOT NULL DEFAULT 0,
		records_updated     INTEGER NOT NULL DEFAULT 0,
		errors              INTEGER NOT NULL DEFAULT 0,
		extraction_failures INTEGER NOT NULL DEFAULT 0,
		success             BOOLEAN NOT NULL DEFAULT FALSE,
		error_message       TEXT NOT NULL DEFAULT '',
		elapsed_seconds     {{float}} NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_started ON run_logs (started_at)`,
}

// Open connects to the configured database and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if d.name == "sqlite" {
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store: path is required")
		}
		dsn = sqliteDSN(cfg.Path)
	} else if dsn == "" {
		return nil, fmt.Errorf("postgres store: dsn is required")
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// One writer; a second connection would only wait on the file lock.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", d.name, err)
	}

	s := &DB{db: db, d: d, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*DB, error) {
	return Open(ctx, Config{Driver: "sqlite", Path: dbPath})
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, s.d.ddl(stmt)); err != nil {
			return fmt.Errorf("migrating %s schema: %w", s.d.name, err)
		}
	}
	return nil
}

// Dialect names the database in use.
func (s *DB) Dialect() string { return s.d.name }

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(query), args...)
}

func (s *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(query), args...)
}
