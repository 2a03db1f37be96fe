package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"ruingen/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	best        map[string]model.BlueprintRecord
	history     map[string][]int
	diagnostics map[string][]model.RoundDiagnostics
	lineage     map[string][]model.LineageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.best = make(map[string]model.BlueprintRecord)
	s.history = make(map[string][]int)
	s.diagnostics = make(map[string][]model.RoundDiagnostics)
	s.lineage = make(map[string][]model.LineageRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveBestBlueprint(_ context.Context, runID string, bp model.BlueprintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.best[runID] = cloneBlueprintRecord(bp)
	return nil
}

func (s *MemoryStore) GetBestBlueprint(_ context.Context, runID string) (model.BlueprintRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bp, ok := s.best[runID]
	if !ok {
		return model.BlueprintRecord{}, false, nil
	}
	return cloneBlueprintRecord(bp), true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = slices.Clone(history)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(history), true, nil
}

func (s *MemoryStore) SaveRoundDiagnostics(_ context.Context, runID string, diagnostics []model.RoundDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.diagnostics[runID] = slices.Clone(diagnostics)
	return nil
}

func (s *MemoryStore) GetRoundDiagnostics(_ context.Context, runID string) ([]model.RoundDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(diagnostics), true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.lineage[runID] = slices.Clone(lineage)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(lineage), true, nil
}

func cloneBlueprintRecord(bp model.BlueprintRecord) model.BlueprintRecord {
	bp.Cells = slices.Clone(bp.Cells)
	bp.ValidIDs = slices.Clone(bp.ValidIDs)
	bp.AttachmentPoints = slices.Clone(bp.AttachmentPoints)
	return bp
}
