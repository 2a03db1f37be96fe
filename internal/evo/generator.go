package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"ruingen/internal/blueprint"
	"ruingen/internal/model"
)

// Defaults for a full generation run.
const (
	DefaultPopulationSize = 100
	DefaultRounds         = 100
	DefaultEliteCount     = 10
	DefaultSurvivorCount  = 0
)

var DefaultDims = blueprint.C(10, 10, 10)

// Lineage operations that are not mutations.
const (
	OpSeed          = "seed"
	OpEliteClone    = "elite_clone"
	OpSurvivorClone = "survivor_clone"
)

type ScoredBlueprint struct {
	ID        string
	Blueprint *blueprint.Blueprint
	Score     int
}

// ProgressFunc receives the completed fraction of a run in [0, 1].
type ProgressFunc func(fraction float64, message string)

type RunResult struct {
	Best            ScoredBlueprint
	BestByRound     []int
	Diagnostics     []model.RoundDiagnostics
	FinalPopulation []ScoredBlueprint
	Lineage         []model.LineageRecord
	InitialMinScore int
}

type Config struct {
	PopulationSize int
	Rounds         int
	EliteCount     int
	SurvivorCount  int
	Dims           blueprint.Coord
	Mutation       Operator
	Scorer         Scorer
	Selector       Selector
	InitMutations  int
	Workers        int
	Seed           int64
	Progress       ProgressFunc
	Logger         *log.Logger
}

// Generator evolves a population of blueprints. A Generator holds the run's
// random source and is not safe for concurrent use.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	logger *log.Logger
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Rounds < 0 {
		return nil, fmt.Errorf("rounds must be >= 0")
	}
	if cfg.EliteCount < 0 {
		return nil, fmt.Errorf("elite count must be >= 0")
	}
	if cfg.SurvivorCount < 0 {
		return nil, fmt.Errorf("survivor count must be >= 0")
	}
	if cfg.EliteCount+cfg.SurvivorCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count + survivor count must be <= population size")
	}
	if cfg.Dims.X < 0 || cfg.Dims.Y < 0 || cfg.Dims.Z < 0 {
		return nil, fmt.Errorf("%w: %s", blueprint.ErrInvalidDimension, cfg.Dims.DimsString())
	}
	if cfg.InitMutations < 0 {
		return nil, fmt.Errorf("init mutations must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Scorer == nil {
		cfg.Scorer = CoveredVolume{}
	}
	if cfg.Selector == nil {
		cfg.Selector = CDFSelector{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}, nil
}

// Generate randomizes the initial population, runs every round and returns
// the fittest blueprint along with the run history.
func (g *Generator) Generate(ctx context.Context) (RunResult, error) {
	total := float64(g.cfg.PopulationSize + g.cfg.Rounds)

	population, lineage, err := g.initialPopulation(ctx, total)
	if err != nil {
		return RunResult{}, err
	}
	initialMin := population[0].Score
	for _, item := range population {
		if item.Score < initialMin {
			initialMin = item.Score
		}
	}

	bestHistory := make([]int, 0, g.cfg.Rounds)
	diagnostics := make([]model.RoundDiagnostics, 0, g.cfg.Rounds)
	for round := 0; round < g.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		rankPopulation(population)
		next, roundLineage, stats, err := g.nextGeneration(ctx, population, round)
		if err != nil {
			return RunResult{}, err
		}

		diag := summarizeRound(population, round+1)
		diag.Mutations = stats.mutations
		diag.UnstableMutations = stats.unstable
		diag.FailedPlacements = stats.failedPlacements
		diagnostics = append(diagnostics, diag)
		bestHistory = append(bestHistory, population[0].Score)
		lineage = append(lineage, roundLineage...)

		g.logger.Printf("[Generator] finished round %d/%d, best score %d", round+1, g.cfg.Rounds, population[0].Score)
		g.report(float64(g.cfg.PopulationSize+round+1)/total, fmt.Sprintf("finished round %d/%d, best score %d", round+1, g.cfg.Rounds, population[0].Score))
		population = next
	}

	rankPopulation(population)
	return RunResult{
		Best:            population[0],
		BestByRound:     bestHistory,
		Diagnostics:     diagnostics,
		FinalPopulation: population,
		Lineage:         lineage,
		InitialMinScore: initialMin,
	}, nil
}

func (g *Generator) initialPopulation(ctx context.Context, total float64) ([]ScoredBlueprint, []model.LineageRecord, error) {
	jobs := make([]mutationJob, g.cfg.PopulationSize)
	for i := range jobs {
		empty, err := blueprint.NewFromDims(g.cfg.Dims)
		if err != nil {
			return nil, nil, err
		}
		jobs[i] = mutationJob{idx: i, parent: empty, seed: g.rng.Int63(), steps: g.cfg.InitMutations}
	}

	outcomes, err := g.runJobs(ctx, jobs, func(done int) {
		g.report(float64(done)/total, fmt.Sprintf("initialized individual %d/%d", done, g.cfg.PopulationSize))
	})
	if err != nil {
		return nil, nil, err
	}

	population := make([]ScoredBlueprint, len(outcomes))
	lineage := make([]model.LineageRecord, 0, len(outcomes)*(g.cfg.Rounds+1))
	for i, out := range outcomes {
		population[i] = ScoredBlueprint{ID: individualID(0, i), Blueprint: out.blueprint, Score: out.score}
		lineage = append(lineage, model.LineageRecord{
			IndividualID: population[i].ID,
			Round:        0,
			Operation:    OpSeed,
			Stable:       out.stable,
			Fingerprint:  out.blueprint.Fingerprint(),
			Score:        out.score,
		})
	}
	return population, lineage, nil
}

type roundStats struct {
	mutations        int
	unstable         int
	failedPlacements int
}

// nextGeneration fills slots [0, E) with elite clones, [E, E+S) with sampled
// clones and the rest with mutated children of sampled parents.
func (g *Generator) nextGeneration(ctx context.Context, ranked []ScoredBlueprint, round int) ([]ScoredBlueprint, []model.LineageRecord, roundStats, error) {
	sampler, err := g.cfg.Selector.Prepare(ranked)
	if err != nil {
		return nil, nil, roundStats{}, err
	}

	size := g.cfg.PopulationSize
	nextRound := round + 1
	next := make([]ScoredBlueprint, size)
	lineage := make([]model.LineageRecord, size)
	cloneInto := func(slot int, parent ScoredBlueprint, id, op string) {
		next[slot] = ScoredBlueprint{ID: id, Blueprint: parent.Blueprint.Clone(), Score: parent.Score}
		lineage[slot] = model.LineageRecord{
			IndividualID: id,
			ParentID:     parent.ID,
			Round:        nextRound,
			Operation:    op,
			Stable:       true,
			Fingerprint:  parent.Blueprint.Fingerprint(),
			Score:        parent.Score,
		}
	}

	slot := 0
	for ; slot < g.cfg.EliteCount; slot++ {
		cloneInto(slot, ranked[slot], ranked[slot].ID, OpEliteClone)
	}
	for ; slot < g.cfg.EliteCount+g.cfg.SurvivorCount; slot++ {
		cloneInto(slot, ranked[sampler.Sample(g.rng)], individualID(nextRound, slot), OpSurvivorClone)
	}

	jobs := make([]mutationJob, 0, size-slot)
	parents := make([]ScoredBlueprint, 0, size-slot)
	for ; slot < size; slot++ {
		parent := ranked[sampler.Sample(g.rng)]
		parents = append(parents, parent)
		jobs = append(jobs, mutationJob{idx: len(jobs), parent: parent.Blueprint, seed: g.rng.Int63(), steps: 1})
	}

	outcomes, err := g.runJobs(ctx, jobs, nil)
	if err != nil {
		return nil, nil, roundStats{}, err
	}

	var stats roundStats
	first := size - len(jobs)
	for i, out := range outcomes {
		slot := first + i
		id := individualID(nextRound, slot)
		next[slot] = ScoredBlueprint{ID: id, Blueprint: out.blueprint, Score: out.score}
		lineage[slot] = model.LineageRecord{
			IndividualID: id,
			ParentID:     parents[i].ID,
			Round:        nextRound,
			Operation:    out.operation,
			Stable:       out.stable,
			Fingerprint:  out.blueprint.Fingerprint(),
			Score:        out.score,
		}
		stats.mutations++
		if !out.stable {
			stats.unstable++
		}
		if out.operation == OpNoop {
			stats.failedPlacements++
		}
	}
	return next, lineage, stats, nil
}

type mutationJob struct {
	idx    int
	parent *blueprint.Blueprint
	seed   int64
	steps  int
}

type mutationOutcome struct {
	idx       int
	blueprint *blueprint.Blueprint
	operation string
	stable    bool
	score     int
	err       error
}

// runJobs applies the mutation operator to every job on a pool of workers.
// Each job draws from its own random stream, so outcomes do not depend on the
// worker count. done is called from the calling goroutine after each job.
func (g *Generator) runJobs(ctx context.Context, jobs []mutationJob, done func(n int)) ([]mutationOutcome, error) {
	outcomes := make([]mutationOutcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes, nil
	}

	jobCh := make(chan mutationJob)
	results := make(chan mutationOutcome, len(jobs))

	workerCount := g.cfg.Workers
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobCh {
				results <- g.runJob(ctx, j)
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobCh <- j
		}
		close(jobCh)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	completed := 0
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		outcomes[res.idx] = res
		completed++
		if done != nil && firstErr == nil {
			done(completed)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return outcomes, nil
}

func (g *Generator) runJob(ctx context.Context, j mutationJob) mutationOutcome {
	if err := ctx.Err(); err != nil {
		return mutationOutcome{idx: j.idx, err: err}
	}

	rng := rand.New(rand.NewSource(j.seed))
	current := j.parent
	stable := true
	operations := make([]string, 0, j.steps)
	for step := 0; step < j.steps; step++ {
		res, err := g.cfg.Mutation.Apply(ctx, rng, current)
		if err != nil {
			return mutationOutcome{idx: j.idx, err: err}
		}
		if res.Blueprint == nil {
			return mutationOutcome{idx: j.idx, err: errors.New("mutation returned no blueprint")}
		}
		current = res.Blueprint
		stable = res.Stable
		operations = append(operations, res.Operation)
	}
	if current == j.parent {
		current = current.Clone()
	}

	return mutationOutcome{
		idx:       j.idx,
		blueprint: current,
		operation: summarizeOperations(operations),
		stable:    stable,
		score:     g.cfg.Scorer.Score(current),
	}
}

func (g *Generator) report(fraction float64, message string) {
	if g.cfg.Progress == nil {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	g.cfg.Progress(fraction, message)
}

// rankPopulation sorts by descending score, keeping prior order for ties.
func rankPopulation(population []ScoredBlueprint) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].Score > population[j].Score
	})
}

func summarizeRound(ranked []ScoredBlueprint, round int) model.RoundDiagnostics {
	if len(ranked) == 0 {
		return model.RoundDiagnostics{Round: round}
	}
	scores := make([]float64, len(ranked))
	blocks := make([]float64, len(ranked))
	fingerprints := make(map[string]struct{}, len(ranked))
	minScore := ranked[0].Score
	for i, item := range ranked {
		scores[i] = float64(item.Score)
		blocks[i] = float64(item.Blueprint.BlockCount())
		fingerprints[item.Blueprint.Fingerprint()] = struct{}{}
		if item.Score < minScore {
			minScore = item.Score
		}
	}
	return model.RoundDiagnostics{
		Round:         round,
		BestScore:     ranked[0].Score,
		MeanScore:     stat.Mean(scores, nil),
		MinScore:      minScore,
		MeanBlocks:    stat.Mean(blocks, nil),
		UniqueDesigns: len(fingerprints),
	}
}

// summarizeOperations collapses a chain of operations into counts, e.g.
// "add*7+delete*2+noop".
func summarizeOperations(ops []string) string {
	if len(ops) == 0 {
		return OpNoop
	}
	if len(ops) == 1 {
		return ops[0]
	}
	counts := make(map[string]int, 3)
	order := make([]string, 0, 3)
	for _, op := range ops {
		if counts[op] == 0 {
			order = append(order, op)
		}
		counts[op]++
	}
	sort.Strings(order)
	parts := make([]string, 0, len(order))
	for _, op := range order {
		if counts[op] == 1 {
			parts = append(parts, op)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s*%d", op, counts[op]))
	}
	return strings.Join(parts, "+")
}

func individualID(round, slot int) string {
	return fmt.Sprintf("r%d-i%d", round, slot)
}
