package storage

import (
	"context"
	"errors"
	"testing"

	"ruingen/internal/model"
)

func sampleRun(id, created string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Dims:            [3]int{5, 5, 5},
		PopulationSize:  20,
		Rounds:          5,
		EliteCount:      2,
		Scorer:          "covered_volume",
		Selection:       "cdf",
		Stability:       "support",
		BestScore:       14,
	}
}

func sampleBlueprint() model.BlueprintRecord {
	return model.BlueprintRecord{
		VersionedRecord: CurrentVersion(),
		Dims:            [3]int{2, 1, 1},
		NextID:          2,
		Cells:           []int{1, 0},
		ValidIDs:        []int{1},
		Score:           3,
		Fingerprint:     "abc",
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}

	older := sampleRun("run-a", "2026-01-01T00:00:00Z")
	newer := sampleRun("run-b", "2026-02-01T00:00:00Z")
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	newer.BestScore = 21
	if err := store.SaveRun(ctx, newer); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if loaded.BestScore != 21 || loaded.Dims != newer.Dims {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	bp := sampleBlueprint()
	if err := store.SaveBestBlueprint(ctx, "run-b", bp); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}
	bp.Cells[0] = 9
	gotBP, ok, err := store.GetBestBlueprint(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get blueprint: ok=%v err=%v", ok, err)
	}
	if gotBP.Cells[0] != 1 || gotBP.Score != 3 {
		t.Fatalf("stored blueprint aliased or changed: %+v", gotBP)
	}

	if err := store.SaveFitnessHistory(ctx, "run-b", []int{3, 5, 8}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-b")
	if err != nil || !ok || len(history) != 3 || history[2] != 8 {
		t.Fatalf("unexpected history: %v ok=%v err=%v", history, ok, err)
	}

	diagnostics := []model.RoundDiagnostics{
		{Round: 1, BestScore: 5, MeanScore: 2.5, MinScore: 0, UniqueDesigns: 18, Mutations: 18},
		{Round: 2, BestScore: 8, MeanScore: 4.1, MinScore: 1, UniqueDesigns: 17, Mutations: 18, UnstableMutations: 2},
	}
	if err := store.SaveRoundDiagnostics(ctx, "run-b", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiag, ok, err := store.GetRoundDiagnostics(ctx, "run-b")
	if err != nil || !ok || len(gotDiag) != 2 || gotDiag[1] != diagnostics[1] {
		t.Fatalf("unexpected diagnostics: %+v ok=%v err=%v", gotDiag, ok, err)
	}

	lineage := []model.LineageRecord{{
		VersionedRecord: CurrentVersion(),
		IndividualID:    "r1-i4",
		ParentID:        "r0-i2",
		Round:           1,
		Operation:       "add",
		Stable:          true,
	}}
	if err := store.SaveLineage(ctx, "run-b", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, "run-b")
	if err != nil || !ok || len(gotLineage) != 1 || gotLineage[0].ParentID != "r0-i2" {
		t.Fatalf("unexpected lineage: %+v ok=%v err=%v", gotLineage, ok, err)
	}

	if _, ok, err := store.GetLineage(ctx, "run-a"); err != nil || ok {
		t.Fatalf("expected no lineage for run-a, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), sampleRun("x", "")); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(" Memory ", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("unexpected store type %T", store)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
	if _, err := NewStore("postgres", ""); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
