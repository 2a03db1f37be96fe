package storage

import (
	"context"

	"ruingen/internal/model"
)

// Store persists generation runs and their results. Lookups report whether a
// record exists separately from failures.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveBestBlueprint(ctx context.Context, runID string, bp model.BlueprintRecord) error
	GetBestBlueprint(ctx context.Context, runID string) (model.BlueprintRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []int) error
	GetFitnessHistory(ctx context.Context, runID string) ([]int, bool, error)
	SaveRoundDiagnostics(ctx context.Context, runID string, diagnostics []model.RoundDiagnostics) error
	GetRoundDiagnostics(ctx context.Context, runID string) ([]model.RoundDiagnostics, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
}
