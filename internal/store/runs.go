package store

import (
	"context"
	"fmt"

	"github.com/amishk599/simoradar/internal/model"
)

// AppendRunLog stores a finalized run log. Run logs are never updated: a
// second append with the same id fails.
func (s *DB) AppendRunLog(ctx context.Context, log model.RunLog) error {
	_, err := s.exec(ctx, `INSERT INTO run_logs (
		id, source, started_at, finished_at, pages_processed,
		records_found, records_new, records_updated, errors, extraction_failures,
		success, error_message, elapsed_seconds
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Source, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.PagesProcessed,
		log.RecordsFound, log.RecordsNew, log.RecordsUpdated, log.Errors, log.ExtractionFailures,
		log.Success, log.ErrorMessage, log.ElapsedSeconds,
	)
	if err != nil {
		return fmt.Errorf("appending run log %s: %w", log.ID, err)
	}
	return nil
}

// ListRuns returns the most recent run logs, newest first.
func (s *DB) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT
		id, source, started_at, finished_at, pages_processed,
		records_found, records_new, records_updated, errors, extraction_failures,
		success, error_message, elapsed_seconds
		FROM run_logs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunLog
	for rows.Next() {
		var l model.RunLog
		if err := rows.Scan(
			&l.ID, &l.Source, &l.StartedAt, &l.FinishedAt, &l.PagesProcessed,
			&l.RecordsFound, &l.RecordsNew, &l.RecordsUpdated, &l.Errors, &l.ExtractionFailures,
			&l.Success, &l.ErrorMessage, &l.ElapsedSeconds,
		); err != nil {
			return nil, fmt.Errorf("scanning run log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return out, nil
}
