package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ruingen/internal/realize"
	"ruingen/internal/stats"
)

func TestRunCommandCreatesArtifactsAndQueries(t *testing.T) {
	base := t.TempDir()
	runsDir := filepath.Join(base, "runs")
	outDir := filepath.Join(base, "exports")
	ctx := context.Background()

	args := []string{
		"run",
		"-store", "memory",
		"-runs-dir", runsDir,
		"-dims", "5x5x5",
		"-pop", "6",
		"-rounds", "2",
		"-elites", "1",
		"-seed", "11",
		"-workers", "2",
		"-progress=false",
	}
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID
	for _, file := range []string{"config.json", "fitness_history.json", "fitness_series.csv", "round_diagnostics.json", "best_blueprint.json", "top_blueprints.json", "lineage.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(runsDir, runID, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig(runsDir, runID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if cfg.Dims != [3]int{5, 5, 5} || cfg.PopulationSize != 6 || cfg.Rounds != 2 || cfg.Seed != 11 {
		t.Fatalf("unexpected run config: %+v", cfg)
	}

	store := []string{"-store", "memory", "-runs-dir", runsDir}
	for _, cmd := range [][]string{
		{"runs"},
		{"runs", "-json"},
		{"show", "-latest"},
		{"show", "-run-id", runID, "-json"},
		{"fitness", "-latest"},
		{"diagnostics", "-run-id", runID},
		{"lineage", "-latest", "-limit", "3"},
	} {
		if err := run(ctx, append(cmd, store...)); err != nil {
			t.Fatalf("%s: %v", strings.Join(cmd, " "), err)
		}
	}

	export := append([]string{"export", "-latest", "-out", outDir, "-name", "ruin"}, store...)
	if err := run(ctx, export); err != nil {
		t.Fatalf("export: %v", err)
	}
	scene := filepath.Join(outDir, "ruin.json")
	if _, err := realize.ReadAsset(scene); err != nil {
		t.Fatalf("read exported scene: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, runID, "config.json")); err != nil {
		t.Fatalf("expected exported artifacts: %v", err)
	}

	if err := run(ctx, export); !errors.Is(err, realize.ErrNotReplaced) {
		t.Fatalf("expected not replaced error without -force, got %v", err)
	}
	if err := run(ctx, append(export, "-force")); err != nil {
		t.Fatalf("forced export: %v", err)
	}
}

func TestRunCommandUsesEnvironmentDefaults(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "env-runs")
	t.Setenv("RUINGEN_STORE", "memory")
	t.Setenv("RUINGEN_RUNS_DIR", runsDir)

	args := []string{"run", "-dims", "4x4x4", "-pop", "4", "-rounds", "1", "-elites", "1", "-progress=false", "-run-id", "env-run"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, ok, err := stats.ReadRunConfig(runsDir, "env-run"); err != nil || !ok {
		t.Fatalf("expected run under env runs dir: ok=%t err=%v", ok, err)
	}
}

func TestRunCommandConfigFileWithFlagOverride(t *testing.T) {
	base := t.TempDir()
	runsDir := filepath.Join(base, "runs")
	path := filepath.Join(base, "ruin.yaml")
	config := `
run_id: from-file
dims: [4, 4, 4]
population: 5
rounds: 1
elites: 1
seed: 3
score: block_count
designs:
  - [[0, 0, 0], [0, 1, 0], [1, 1, 0], [2, 1, 0], [2, 0, 0]]
`
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := []string{"run", "-config", path, "-rounds", "2", "-store", "memory", "-runs-dir", runsDir, "-progress=false"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	cfg, ok, err := stats.ReadRunConfig(runsDir, "from-file")
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if cfg.PopulationSize != 5 || cfg.Rounds != 2 || cfg.Seed != 3 {
		t.Fatalf("unexpected config values: %+v", cfg)
	}
	if cfg.Scorer != "block_count" || len(cfg.ExtraDesigns) != 1 {
		t.Fatalf("unexpected scorer/designs: %+v", cfg)
	}
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
	err := run(context.Background(), []string{"evolve"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(context.Background(), []string{"fitness", "-store", "memory"}); err == nil {
		t.Fatal("expected missing run reference error")
	}
	if err := run(context.Background(), []string{"export", "-run-id", "a", "-latest", "-store", "memory"}); err == nil {
		t.Fatal("expected conflicting run reference error")
	}
}

func TestProgressPrinterWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	progress := newProgressPrinter(&buf, false)
	for _, f := range []float64{0.05, 0.15, 0.16, 1} {
		progress(f, "step")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"progress   0% step", "progress  10% step", "progress 100% step"}
	if len(lines) != len(want) {
		t.Fatalf("unexpected progress lines: %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestProgressPrinterOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	progress := newProgressPrinter(&buf, true)
	progress(0.5, "half")
	progress(1, "done")
	out := buf.String()
	if !strings.Contains(out, "[###############...............]  50% half") {
		t.Fatalf("unexpected half bar: %q", out)
	}
	if !strings.HasSuffix(out, "\n") || !strings.Contains(out, "100% done") {
		t.Fatalf("unexpected final bar: %q", out)
	}
}

func TestConfirmReplace(t *testing.T) {
	if !confirmReplace(strings.NewReader(""), &bytes.Buffer{}, false, true)("x") {
		t.Fatal("force should replace")
	}
	if confirmReplace(strings.NewReader("y\n"), &bytes.Buffer{}, false, false)("x") {
		t.Fatal("non-interactive confirm should not replace")
	}
	var prompt bytes.Buffer
	if !confirmReplace(strings.NewReader("Yes\n"), &prompt, true, false)("ruin.json") {
		t.Fatal("expected yes to replace")
	}
	if !strings.Contains(prompt.String(), "ruin.json exists") {
		t.Fatalf("unexpected prompt: %q", prompt.String())
	}
	if confirmReplace(strings.NewReader("n\n"), &bytes.Buffer{}, true, false)("x") {
		t.Fatal("expected no to keep the file")
	}
	if confirmReplace(strings.NewReader(""), &bytes.Buffer{}, true, false)("x") {
		t.Fatal("expected empty answer to keep the file")
	}
}
