// Package ruingen is the public entry point for evolving voxel ruins: it runs
// the generator, persists results and exports finished blueprints.
package ruingen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ruingen/internal/blueprint"
	"ruingen/internal/evo"
	"ruingen/internal/model"
	"ruingen/internal/realize"
	"ruingen/internal/stability"
	"ruingen/internal/stats"
	"ruingen/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "ruingen.db"
	defaultTopCount   = 5
	defaultListLimit  = 20
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *log.Logger
}

type Client struct {
	store  storage.Store
	logger *log.Logger

	runsDir    string
	exportsDir string

	initMu sync.Mutex
	ready  bool
}

// RunRequest configures one evolutionary run. Start from DefaultRunRequest;
// Run fills only the fields whose zero value is not meaningful.
type RunRequest struct {
	RunID             string
	Dims              [3]int
	Population        int
	Rounds            int
	Elites            int
	Survivors         int
	DeleteChance      float64
	MutationAttempts  int
	PlacementAttempts int
	InitMutations     int
	Seed              int64
	Workers           int
	Scorer            string
	Selection         string
	Stability         string
	SimDuration       time.Duration
	SimStep           time.Duration
	SimTolerance      float64
	// ExtraDesigns are block lists appended to the default design library.
	ExtraDesigns [][][3]int
	Progress     evo.ProgressFunc
}

func DefaultRunRequest() RunRequest {
	d := evo.DefaultDims
	return RunRequest{
		Dims:              [3]int{d.X, d.Y, d.Z},
		Population:        evo.DefaultPopulationSize,
		Rounds:            evo.DefaultRounds,
		Elites:            evo.DefaultEliteCount,
		Survivors:         evo.DefaultSurvivorCount,
		DeleteChance:      evo.DefaultDeleteChance,
		MutationAttempts:  evo.MaxMutationAttempts,
		PlacementAttempts: evo.MaxPlacementAttempts,
		InitMutations:     evo.NumInitMutations,
		Seed:              1,
		Workers:           1,
		Scorer:            evo.ScoreCoveredVolume,
		Selection:         "cdf",
		Stability:         stability.NameSupport,
	}
}

type RunSummary struct {
	RunID           string
	ArtifactsDir    string
	BestID          string
	BestScore       int
	BestBlocks      int
	BestRender      string
	BestByRound     []int
	InitialMinScore int
	Elapsed         time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Dims           [3]int
	Population     int
	Rounds         int
	Seed           int64
	Scorer         string
	FinalBestScore int
}

// RunRef names a stored run either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
}

type ShowSummary struct {
	Run       model.RunRecord
	Best      model.BlueprintRecord
	Render    string
	Summary   stats.RunSummary
	FromStore bool
}

type HistoryRequest struct {
	RunRef
	Limit int
}

type ExportRequest struct {
	RunRef
	OutDir string
	// Name of the realized scene asset; defaults to the run id.
	Name string
	// Confirm is asked before an existing scene asset is replaced.
	Confirm func(path string) bool
}

type ExportSummary struct {
	RunID     string
	Directory string
	ScenePath string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = normalizeRunRequest(req)
	started := time.Now()
	now := started.UTC()
	runID := req.RunID
	if runID == "" {
		runID = fmt.Sprintf("run-%s-%s", now.Format("20060102T150405Z"), uuid.NewString()[:8])
	}

	library := blueprint.DefaultLibrary()
	for i, blocks := range req.ExtraDesigns {
		coords := make([]blueprint.Coord, 0, len(blocks))
		for _, b := range blocks {
			coords = append(coords, blueprint.C(b[0], b[1], b[2]))
		}
		design, err := blueprint.FromBlocks(coords)
		if err != nil {
			return RunSummary{}, fmt.Errorf("extra design %d: %w", i, err)
		}
		if library, err = library.With(design); err != nil {
			return RunSummary{}, err
		}
	}

	oracle, err := stability.FromName(req.Stability, stability.Simulator{
		Duration:  req.SimDuration,
		Step:      req.SimStep,
		Tolerance: req.SimTolerance,
	})
	if err != nil {
		return RunSummary{}, err
	}
	scorer, err := evo.ScorerFromName(req.Scorer)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.SelectorFromName(req.Selection, req.Elites)
	if err != nil {
		return RunSummary{}, err
	}
	mutator, err := evo.NewMutator(evo.MutatorConfig{
		Library:              library,
		Oracle:               oracle,
		DeleteChance:         req.DeleteChance,
		MaxMutationAttempts:  req.MutationAttempts,
		MaxPlacementAttempts: req.PlacementAttempts,
		InitMutations:        req.InitMutations,
		Logger:               c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}
	generator, err := evo.NewGenerator(evo.Config{
		PopulationSize: req.Population,
		Rounds:         req.Rounds,
		EliteCount:     req.Elites,
		SurvivorCount:  req.Survivors,
		Dims:           blueprint.C(req.Dims[0], req.Dims[1], req.Dims[2]),
		Mutation:       mutator,
		Scorer:         scorer,
		Selector:       selector,
		InitMutations:  req.InitMutations,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Progress:       req.Progress,
		Logger:         c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	c.logger.Printf("[Client] starting run %s: %dx%dx%d grid, population %d, %d rounds", runID, req.Dims[0], req.Dims[1], req.Dims[2], req.Population, req.Rounds)
	result, err := generator.Generate(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	version := storage.CurrentVersion()
	best := result.Best.Blueprint.Record()
	best.VersionedRecord = version
	best.Score = result.Best.Score

	lineage := make([]model.LineageRecord, len(result.Lineage))
	for i, rec := range result.Lineage {
		rec.VersionedRecord = version
		lineage[i] = rec
	}

	top := make([]stats.TopBlueprint, 0, defaultTopCount)
	for i, item := range result.FinalPopulation {
		if i == defaultTopCount {
			break
		}
		rec := item.Blueprint.Record()
		rec.VersionedRecord = version
		rec.Score = item.Score
		top = append(top, stats.TopBlueprint{Rank: i + 1, ID: item.ID, Score: item.Score, Blueprint: rec})
	}

	var render strings.Builder
	if err := result.Best.Blueprint.Render(&render); err != nil {
		return RunSummary{}, err
	}

	run := model.RunRecord{
		VersionedRecord: version,
		ID:              runID,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Dims:            req.Dims,
		PopulationSize:  req.Population,
		Rounds:          req.Rounds,
		EliteCount:      req.Elites,
		SurvivorCount:   req.Survivors,
		DeleteChance:    req.DeleteChance,
		Seed:            req.Seed,
		Workers:         req.Workers,
		Scorer:          scorer.Name(),
		Selection:       selector.Name(),
		Stability:       strings.ToLower(strings.TrimSpace(req.Stability)),
		LibrarySize:     library.Len(),
		BestScore:       result.Best.Score,
		InitialMin:      result.InitialMinScore,
	}
	if err := c.persist(ctx, run, best, result, lineage); err != nil {
		return RunSummary{}, err
	}

	cfg := stats.RunConfig{
		RunID:             runID,
		Dims:              req.Dims,
		PopulationSize:    req.Population,
		Rounds:            req.Rounds,
		EliteCount:        req.Elites,
		SurvivorCount:     req.Survivors,
		DeleteChance:      req.DeleteChance,
		MutationAttempts:  req.MutationAttempts,
		PlacementAttempts: req.PlacementAttempts,
		InitMutations:     req.InitMutations,
		Seed:              req.Seed,
		Workers:           req.Workers,
		Scorer:            run.Scorer,
		Selection:         run.Selection,
		Stability:         run.Stability,
		ExtraDesigns:      req.ExtraDesigns,
	}
	if run.Stability == stability.NameSimulate {
		cfg.SimDuration = req.SimDuration.String()
		cfg.SimStep = req.SimStep.String()
		cfg.SimTolerance = req.SimTolerance
	}
	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:          cfg,
		BestByRound:     result.BestByRound,
		Diagnostics:     result.Diagnostics,
		InitialMinScore: result.InitialMinScore,
		FinalBestScore:  result.Best.Score,
		Best:            best,
		BestRender:      render.String(),
		TopBlueprints:   top,
		Lineage:         lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:          runID,
		Dims:           req.Dims,
		PopulationSize: req.Population,
		Rounds:         req.Rounds,
		Seed:           req.Seed,
		Workers:        req.Workers,
		EliteCount:     req.Elites,
		Scorer:         run.Scorer,
		FinalBestScore: result.Best.Score,
		CreatedAtUTC:   run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	c.logger.Printf("[Client] run %s finished, best score %d", runID, result.Best.Score)
	return RunSummary{
		RunID:           runID,
		ArtifactsDir:    filepath.Clean(runDir),
		BestID:          result.Best.ID,
		BestScore:       result.Best.Score,
		BestBlocks:      result.Best.Blueprint.BlockCount(),
		BestRender:      render.String(),
		BestByRound:     append([]int(nil), result.BestByRound...),
		InitialMinScore: result.InitialMinScore,
		Elapsed:         time.Since(started),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Dims:           e.Dims,
			Population:     e.PopulationSize,
			Rounds:         e.Rounds,
			Seed:           e.Seed,
			Scorer:         e.Scorer,
			FinalBestScore: e.FinalBestScore,
		})
	}
	return out, nil
}

// Show loads a run's record and best blueprint. The store is consulted first;
// runs made by another process with a memory store are read back from their
// artifacts.
func (c *Client) Show(ctx context.Context, ref RunRef) (ShowSummary, error) {
	runID, err := c.resolveRunID(ref, "show")
	if err != nil {
		return ShowSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return ShowSummary{}, err
	}

	var out ShowSummary
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if ok {
		best, found, err := c.store.GetBestBlueprint(ctx, runID)
		if err != nil {
			return ShowSummary{}, err
		}
		if !found {
			return ShowSummary{}, fmt.Errorf("best blueprint not found for run id: %s", runID)
		}
		out = ShowSummary{Run: run, Best: best, FromStore: true}
	} else {
		cfg, found, err := stats.ReadRunConfig(c.runsDir, runID)
		if err != nil {
			return ShowSummary{}, err
		}
		if !found {
			return ShowSummary{}, fmt.Errorf("run not found: %s", runID)
		}
		best, found, err := stats.ReadBestBlueprint(c.runsDir, runID)
		if err != nil {
			return ShowSummary{}, err
		}
		if !found {
			return ShowSummary{}, fmt.Errorf("best blueprint not found for run id: %s", runID)
		}
		out = ShowSummary{Run: runFromConfig(cfg, best), Best: best}
	}

	bp, err := blueprint.FromRecord(out.Best)
	if err != nil {
		return ShowSummary{}, fmt.Errorf("restore best blueprint: %w", err)
	}
	var render strings.Builder
	if err := bp.Render(&render); err != nil {
		return ShowSummary{}, err
	}
	out.Render = render.String()

	summary, found, err := stats.ReadRunSummary(c.runsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if found {
		out.Summary = summary
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req HistoryRequest) ([]int, error) {
	runID, err := c.resolveHistory(req, "fitness history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if history, ok, err = stats.ReadFitnessSeries(c.runsDir, runID); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]int(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req HistoryRequest) ([]model.RoundDiagnostics, error) {
	runID, err := c.resolveHistory(req, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetRoundDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if diagnostics, ok, err = stats.ReadRoundDiagnostics(c.runsDir, runID); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

func (c *Client) Lineage(ctx context.Context, req HistoryRequest) ([]model.LineageRecord, error) {
	runID, err := c.resolveHistory(req, "lineage")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if lineage, ok, err = stats.ReadLineage(c.runsDir, runID); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	return lineage, nil
}

// Export copies a run's artifacts to OutDir/<run id> and writes the realized
// best blueprint as OutDir/<name>.json.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunRef, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = runID
	}

	shown, err := c.Show(ctx, RunRef{RunID: runID})
	if err != nil {
		return ExportSummary{}, err
	}
	best, err := blueprint.FromRecord(shown.Best)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	var exporter realize.Exporter = realize.SceneWriter{Dir: req.OutDir, Confirm: req.Confirm}
	scenePath, err := exporter.Export(req.Name, best)
	if err != nil {
		return ExportSummary{}, err
	}
	c.logger.Printf("[Client] exported run %s to %s", runID, scenePath)
	return ExportSummary{
		RunID:     runID,
		Directory: filepath.Clean(exportedDir),
		ScenePath: filepath.Clean(scenePath),
	}, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.ready {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.ready = true
	return nil
}

func (c *Client) persist(ctx context.Context, run model.RunRecord, best model.BlueprintRecord, result evo.RunResult, lineage []model.LineageRecord) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := c.store.SaveBestBlueprint(ctx, run.ID, best); err != nil {
		return err
	}
	if err := c.store.SaveFitnessHistory(ctx, run.ID, result.BestByRound); err != nil {
		return err
	}
	if err := c.store.SaveRoundDiagnostics(ctx, run.ID, result.Diagnostics); err != nil {
		return err
	}
	return c.store.SaveLineage(ctx, run.ID, lineage)
}

func (c *Client) resolveRunID(ref RunRef, what string) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if ref.RunID == "" && !ref.Latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	if ref.RunID != "" {
		return ref.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) resolveHistory(req HistoryRequest, what string) (string, error) {
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	return c.resolveRunID(req.RunRef, what)
}

func normalizeRunRequest(req RunRequest) RunRequest {
	def := DefaultRunRequest()
	if req.Dims == [3]int{} {
		req.Dims = def.Dims
	}
	if req.Population <= 0 {
		req.Population = def.Population
	}
	if req.Workers <= 0 {
		req.Workers = def.Workers
	}
	if req.MutationAttempts <= 0 {
		req.MutationAttempts = def.MutationAttempts
	}
	if req.PlacementAttempts <= 0 {
		req.PlacementAttempts = def.PlacementAttempts
	}
	if strings.TrimSpace(req.Stability) == "" {
		req.Stability = def.Stability
	}
	return req
}

func runFromConfig(cfg stats.RunConfig, best model.BlueprintRecord) model.RunRecord {
	return model.RunRecord{
		ID:             cfg.RunID,
		Dims:           cfg.Dims,
		PopulationSize: cfg.PopulationSize,
		Rounds:         cfg.Rounds,
		EliteCount:     cfg.EliteCount,
		SurvivorCount:  cfg.SurvivorCount,
		DeleteChance:   cfg.DeleteChance,
		Seed:           cfg.Seed,
		Workers:        cfg.Workers,
		Scorer:         cfg.Scorer,
		Selection:      cfg.Selection,
		Stability:      cfg.Stability,
		BestScore:      best.Score,
	}
}
