//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "ruingen.db"))
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ruingen.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveRun(ctx, sampleRun("run-1", "2026-03-01T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.SaveFitnessHistory(ctx, "run-1", []int{1, 2}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewStore("sqlite", path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(second)
	})
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	run, ok, err := second.GetRun(ctx, "run-1")
	if err != nil || !ok || run.ID != "run-1" {
		t.Fatalf("unexpected run after reopen: %+v ok=%v err=%v", run, ok, err)
	}
	history, ok, err := second.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 2 {
		t.Fatalf("unexpected history after reopen: %v ok=%v err=%v", history, ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "ruingen.db"))
	if _, _, err := store.GetRun(context.Background(), "run-1"); err == nil {
		t.Fatal("expected error before init")
	}
}
