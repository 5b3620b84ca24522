package storage

import (
	"context"

	"metis/internal/model"
)

// Store persists run summaries and their per-cycle statistics history.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCycleHistory(ctx context.Context, runID string, history []model.CycleRecord) error
	GetCycleHistory(ctx context.Context, runID string) ([]model.CycleRecord, bool, error)
}
