package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"ruingen/internal/model"
)

const (
	runIndexFile = "run_index.json"

	configFile      = "config.json"
	historyFile     = "fitness_history.json"
	seriesFile      = "fitness_series.csv"
	diagnosticsFile = "round_diagnostics.json"
	bestFile        = "best_blueprint.json"
	topFile         = "top_blueprints.json"
	lineageFile     = "lineage.json"
	summaryFile     = "summary.json"
	renderFile      = "best_blueprint.txt"
)

// RunConfig is everything needed to repeat a run.
type RunConfig struct {
	RunID             string     `json:"run_id"`
	Dims              [3]int     `json:"dims"`
	PopulationSize    int        `json:"population_size"`
	Rounds            int        `json:"rounds"`
	EliteCount        int        `json:"elite_count"`
	SurvivorCount     int        `json:"survivor_count"`
	DeleteChance      float64    `json:"delete_chance"`
	MutationAttempts  int        `json:"mutation_attempts"`
	PlacementAttempts int        `json:"placement_attempts"`
	InitMutations     int        `json:"init_mutations"`
	Seed              int64      `json:"seed"`
	Workers           int        `json:"workers"`
	Scorer            string     `json:"scorer"`
	Selection         string     `json:"selection"`
	Stability         string     `json:"stability"`
	SimDuration       string     `json:"sim_duration,omitempty"`
	SimStep           string     `json:"sim_step,omitempty"`
	SimTolerance      float64    `json:"sim_tolerance,omitempty"`
	ExtraDesigns      [][][3]int `json:"extra_designs,omitempty"`
}

type TopBlueprint struct {
	Rank      int                   `json:"rank"`
	ID        string                `json:"id"`
	Score     int                   `json:"score"`
	Blueprint model.BlueprintRecord `json:"blueprint"`
}

type RunArtifacts struct {
	Config          RunConfig                `json:"config"`
	BestByRound     []int                    `json:"best_by_round"`
	Diagnostics     []model.RoundDiagnostics `json:"round_diagnostics,omitempty"`
	InitialMinScore int                      `json:"initial_min_score"`
	FinalBestScore  int                      `json:"final_best_score"`
	Best            model.BlueprintRecord    `json:"best"`
	BestRender      string                   `json:"-"`
	TopBlueprints   []TopBlueprint           `json:"top_blueprints"`
	Lineage         []model.LineageRecord    `json:"lineage"`
}

// RunSummary condenses the best-by-round series of one run.
type RunSummary struct {
	RunID           string  `json:"run_id"`
	Rounds          int     `json:"rounds"`
	InitialMinScore int     `json:"initial_min_score"`
	FirstBest       int     `json:"first_best"`
	FinalBest       int     `json:"final_best"`
	BestMean        float64 `json:"best_mean"`
	BestStd         float64 `json:"best_std"`
	Improvement     int     `json:"improvement"`
	StalledRounds   int     `json:"stalled_rounds"`
}

type RunIndexEntry struct {
	RunID          string `json:"run_id"`
	Dims           [3]int `json:"dims"`
	PopulationSize int    `json:"population_size"`
	Rounds         int    `json:"rounds"`
	Seed           int64  `json:"seed"`
	Workers        int    `json:"workers"`
	EliteCount     int    `json:"elite_count"`
	Scorer         string `json:"scorer"`
	FinalBestScore int    `json:"final_best_score"`
	CreatedAtUTC   string `json:"created_at_utc"`
}

// Summarize reports how the best score moved across rounds. finalBest is the
// score of the returned individual, which may beat the last round.
func Summarize(runID string, bestByRound []int, initialMin, finalBest int) RunSummary {
	summary := RunSummary{
		RunID:           runID,
		Rounds:          len(bestByRound),
		InitialMinScore: initialMin,
		FinalBest:       finalBest,
	}
	if len(bestByRound) == 0 {
		summary.FirstBest = finalBest
		summary.BestMean = float64(finalBest)
		return summary
	}

	series := make([]float64, len(bestByRound))
	for i, v := range bestByRound {
		series[i] = float64(v)
		if i > 0 && v <= bestByRound[i-1] {
			summary.StalledRounds++
		}
	}
	summary.FirstBest = bestByRound[0]
	if len(series) == 1 {
		summary.BestMean = series[0]
	} else {
		summary.BestMean, summary.BestStd = stat.MeanStdDev(series, nil)
	}
	summary.Improvement = finalBest - bestByRound[0]
	return summary
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	files := []struct {
		name  string
		value any
	}{
		{configFile, artifacts.Config},
		{historyFile, map[string]any{
			"best_by_round":     artifacts.BestByRound,
			"initial_min_score": artifacts.InitialMinScore,
			"final_best_score":  artifacts.FinalBestScore,
		}},
		{diagnosticsFile, artifacts.Diagnostics},
		{bestFile, artifacts.Best},
		{topFile, artifacts.TopBlueprints},
		{lineageFile, artifacts.Lineage},
		{summaryFile, Summarize(artifacts.Config.RunID, artifacts.BestByRound, artifacts.InitialMinScore, artifacts.FinalBestScore)},
	}
	for _, file := range files {
		if err := writeJSON(filepath.Join(runDir, file.name), file.value); err != nil {
			return "", err
		}
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByRound); err != nil {
		return "", err
	}
	if artifacts.BestRender != "" {
		if err := os.WriteFile(filepath.Join(runDir, renderFile), []byte(artifacts.BestRender), 0o644); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// keep the most recently appended first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's artifacts into outDir/<runID>.
// Optional artifacts are copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, historyFile, diagnosticsFile, bestFile, lineageFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{topFile, summaryFile, seriesFile, renderFile} {
		err := copyFile(filepath.Join(src, file), filepath.Join(dst, file))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadBestBlueprint(baseDir, runID string) (model.BlueprintRecord, bool, error) {
	var bp model.BlueprintRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, bestFile), &bp)
	return bp, ok, err
}

func ReadTopBlueprints(baseDir, runID string) ([]TopBlueprint, bool, error) {
	var top []TopBlueprint
	ok, err := readJSON(filepath.Join(baseDir, runID, topFile), &top)
	return top, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, lineageFile), &lineage)
	return lineage, ok, err
}

func ReadRoundDiagnostics(baseDir, runID string) ([]model.RoundDiagnostics, bool, error) {
	var diagnostics []model.RoundDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

func WriteFitnessSeries(runDir string, bestByRound []int) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"round", "best_score"}); err != nil {
		return err
	}
	for i, best := range bestByRound {
		if err := writer.Write([]string{strconv.Itoa(i + 1), strconv.Itoa(best)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]int, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []int{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]int, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
