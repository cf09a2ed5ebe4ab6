package model

import (
	"context"
	"encoding/json"
	"time"
)

// JobRecord is the canonical representation of one SIMO vacancy, regardless of
// whether it was read from a rendered row or from the JSON resource.
// String fields are empty when the source did not publish them.
type JobRecord struct {
	ExternalID string `json:"external_id"` // SIMO id, reconciliation key
	Title      string `json:"title"`
	Level      string `json:"level"`
	Grade      string `json:"grade"`
	Code       string `json:"code"`

	EntityName  string `json:"entity_name"`
	EntityTaxID string `json:"entity_tax_id"`
	EntityType  string `json:"entity_type"`

	ProcessName string `json:"process_name"`
	ProcessCode string `json:"process_code"`
	ProcessYear int    `json:"process_year"`
	ProcessType string `json:"process_type"`

	Department   string `json:"department"`
	Municipality string `json:"municipality"` // only set when Department is set
	Dependency   string `json:"department_of_municipality"`

	SalaryAmount *float64 `json:"salary_amount"` // nil when unpublished

	VacancyCount     int `json:"vacancy_count"`
	VacancyAvailable int `json:"vacancy_available"`

	StudyRequirement      string `json:"study_requirement"`
	ExperienceRequirement string `json:"experience_requirement"`
	OtherRequirements     string `json:"other_requirements"`
	Duties                string `json:"duties"`

	DisabilityReserved bool `json:"disability_reserved"`
	PromotionContest   bool `json:"promotion_contest"`

	ClosingDate string    `json:"closing_date"` // source format, may be a sentinel
	AcquiredAt  time.Time `json:"acquired_at"`
}

// RawKind tells the extractor which input-shape branch applies.
type RawKind string

const (
	RawText       RawKind = "text"
	RawStructured RawKind = "structured"
)

// RawRecord is one source record as handed over by a pagination driver.
type RawRecord struct {
	Kind     RawKind
	Text     string          // RawText: the row's visible text, one field per line
	SourceID string          // row identity when the driver knows it
	Data     json.RawMessage // RawStructured: one item of the resource array
	Page     int             // 0-based page the record came from
	Index    int             // position within the page
}

// Cursor walks one pass worth of pages. Next returns done=true once no further
// page exists; records returned alongside done=true are still valid.
type Cursor interface {
	Next(ctx context.Context) (records []RawRecord, done bool, err error)
	Pages() int
}

// PaginationDriver opens a cursor for the given filter set.
type PaginationDriver interface {
	Name() string
	Open(ctx context.Context, filters Filters) (Cursor, error)
}

// Extractor turns one raw record into a JobRecord or an
// *ExtractionPartialFailure.
type Extractor interface {
	Extract(raw RawRecord) (JobRecord, error)
}

// RecordFilter decides whether a record is returned to the caller.
type RecordFilter interface {
	Match(rec JobRecord, filters Filters) bool
}

// RunLogStore persists finalized run logs. Entries are never updated.
type RunLogStore interface {
	AppendRunLog(ctx context.Context, log RunLog) error
}

// Reporter publishes a finalized run log to a monitoring collaborator.
type Reporter interface {
	Report(ctx context.Context, log RunLog) error
}

// UpsertStats summarizes one reconciliation batch.
type UpsertStats struct {
	Processed int `json:"processed"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// RecordSink reconciles a pass's records against the store. runID is stamped
// on every row the pass touched.
type RecordSink interface {
	BulkUpsert(ctx context.Context, runID string, recs []JobRecord) (UpsertStats, error)
}
