package store

import (
	"context"

	"github.com/amishk599/simoradar/internal/model"
)

// NopStore is a no-op sink and run-log store used in dry-run mode. Nothing is
// written, so every record counts as processed but neither new nor updated.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) BulkUpsert(_ context.Context, _ string, recs []model.JobRecord) (model.UpsertStats, error) {
	return model.UpsertStats{Processed: len(recs)}, nil
}

func (s *NopStore) AppendRunLog(context.Context, model.RunLog) error { return nil }
