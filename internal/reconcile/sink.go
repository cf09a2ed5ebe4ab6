package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/store"
)

// DefaultBatchSize is the number of records per committed transaction.
const DefaultBatchSize = 100

const recordSavepoint = "record"

// Sink reconciles JobRecords against the store by external id.
type Sink struct {
	db        *store.DB
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewSink creates a sink committing every batchSize records. A non-positive
// batchSize uses DefaultBatchSize.
func NewSink(db *store.DB, batchSize int, logger *slog.Logger) *Sink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sink{db: db, batchSize: batchSize, now: time.Now, logger: logger}
}

// Upsert stores a single record in its own transaction and reports whether
// it was new.
func (s *Sink) Upsert(ctx context.Context, runID string, rec model.JobRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	isNew, err := tx.UpsertJob(ctx, runID, rec, s.now())
	if err != nil {
		tx.Rollback()
		return false, &model.ReconciliationError{ExternalID: rec.ExternalID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &model.ReconciliationError{ExternalID: rec.ExternalID, Err: err}
	}
	return isNew, nil
}

// BulkUpsert stores recs in batches. Each record runs inside a savepoint, so
// a failing record is rolled back alone, counted, and the batch continues.
// Batches already committed stay committed whatever happens later. The
// returned error is set only when a transaction could not be opened or
// committed, or ctx ended. On error the stats cover the committed batches
// only.
func (s *Sink) BulkUpsert(ctx context.Context, runID string, recs []model.JobRecord) (model.UpsertStats, error) {
	var committed, stats model.UpsertStats
	if len(recs) == 0 {
		return stats, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return committed, err
	}
	pending := 0
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	now := s.now()
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return committed, fmt.Errorf("reconcile interrupted after %d committed records: %w", committed.Processed, err)
		}

		stats.Processed++
		isNew, err := s.upsertOne(ctx, tx, runID, rec, now)
		switch {
		case err != nil:
			stats.Errors++
			s.logger.Error("record not reconciled", "run_id", runID, "error", err)
		case isNew:
			stats.New++
		default:
			stats.Updated++
		}
		pending++

		if pending == s.batchSize {
			err := tx.Commit()
			tx = nil
			if err != nil {
				return committed, fmt.Errorf("committing batch: %w", err)
			}
			committed = stats
			s.logger.Info("batch committed", "run_id", runID, "processed", stats.Processed, "of", len(recs))
			pending = 0
			if tx, err = s.db.Begin(ctx); err != nil {
				tx = nil
				return committed, err
			}
		}
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		return committed, fmt.Errorf("committing batch: %w", err)
	}
	s.logger.Info("reconciliation finished",
		"run_id", runID,
		"processed", stats.Processed,
		"new", stats.New,
		"updated", stats.Updated,
		"errors", stats.Errors,
	)
	return stats, nil
}

func (s *Sink) upsertOne(ctx context.Context, tx *store.Tx, runID string, rec model.JobRecord, now time.Time) (bool, error) {
	if err := tx.Savepoint(ctx, recordSavepoint); err != nil {
		return false, &model.ReconciliationError{ExternalID: rec.ExternalID, Err: err}
	}
	isNew, err := tx.UpsertJob(ctx, runID, rec, now)
	if err != nil {
		if rerr := tx.RollbackTo(ctx, recordSavepoint); rerr != nil {
			s.logger.Error("rollback to savepoint failed", "external_id", rec.ExternalID, "error", rerr)
		}
		return false, &model.ReconciliationError{ExternalID: rec.ExternalID, Err: err}
	}
	if err := tx.Release(ctx, recordSavepoint); err != nil {
		return false, &model.ReconciliationError{ExternalID: rec.ExternalID, Err: err}
	}
	return isNew, nil
}
