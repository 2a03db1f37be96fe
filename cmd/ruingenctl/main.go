package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"ruingen/internal/evo"
	"ruingen/internal/stability"
	"ruingen/pkg/ruingen"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	cfg, err := loadEnvConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "init":
		return runInit(ctx, cfg, args[1:])
	case "run":
		return runRun(ctx, cfg, args[1:])
	case "runs":
		return runRuns(ctx, cfg, args[1:])
	case "show":
		return runShow(ctx, cfg, args[1:])
	case "fitness":
		return runFitness(ctx, cfg, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, cfg, args[1:])
	case "lineage":
		return runLineage(ctx, cfg, args[1:])
	case "export":
		return runExport(ctx, cfg, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *sf.store)
	return nil
}

func runRun(ctx context.Context, cfg envConfig, args []string) error {
	def := ruingen.DefaultRunRequest()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config file (YAML or JSON)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	dims := fs.String("dims", fmt.Sprintf("%dx%dx%d", def.Dims[0], def.Dims[1], def.Dims[2]), "grid dimensions XxYxZ")
	population := fs.Int("pop", def.Population, "population size")
	rounds := fs.Int("rounds", def.Rounds, "round count")
	elites := fs.Int("elites", def.Elites, "top individuals carried over unchanged each round")
	survivors := fs.Int("survivors", def.Survivors, "individuals cloned forward via weighted sampling each round")
	deleteChance := fs.Float64("delete-chance", def.DeleteChance, "probability a mutation deletes a sub-design")
	mutationAttempts := fs.Int("mutation-attempts", def.MutationAttempts, "mutation retries until a stable result")
	placementAttempts := fs.Int("placement-attempts", def.PlacementAttempts, "design placement retries per add")
	initMutations := fs.Int("init-mutations", def.InitMutations, "mutations applied to each initial blueprint")
	seed := fs.Int64("seed", def.Seed, "rng seed")
	workers := fs.Int("workers", def.Workers, "worker count")
	scoreName := fs.String("score", def.Scorer, "scorer: "+strings.Join(evo.ListScorers(), "|"))
	selectionName := fs.String("selection", def.Selection, "parent selection: "+strings.Join(evo.SelectorNames(), "|"))
	stabilityName := fs.String("stability", def.Stability, "stability oracle: "+strings.Join(stability.Names(), "|"))
	simDuration := fs.Duration("sim-duration", stability.DefaultSimDuration, "simulated settle time for -stability simulate")
	simStep := fs.Duration("sim-step", stability.DefaultSimStep, "simulation step for -stability simulate")
	simTolerance := fs.Float64("sim-tolerance", stability.DefaultSimTolerance, "max body displacement for -stability simulate")
	showRender := fs.Bool("render", false, "print the best blueprint as y-slices")
	showProgress := fs.Bool("progress", true, "report progress on stderr")
	verbose := fs.Bool("v", false, "verbose logging")
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	if *configPath == "" {
		fs.VisitAll(func(f *flag.Flag) {
			setFlags[f.Name] = true
		})
	} else {
		fs.Visit(func(f *flag.Flag) {
			setFlags[f.Name] = true
		})
	}
	err = overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":             *runID,
		"dims":               *dims,
		"pop":                *population,
		"rounds":             *rounds,
		"elites":             *elites,
		"survivors":          *survivors,
		"delete-chance":      *deleteChance,
		"mutation-attempts":  *mutationAttempts,
		"placement-attempts": *placementAttempts,
		"init-mutations":     *initMutations,
		"seed":               *seed,
		"workers":            *workers,
		"score":              *scoreName,
		"selection":          *selectionName,
		"stability":          *stabilityName,
		"sim-duration":       *simDuration,
		"sim-step":           *simStep,
		"sim-tolerance":      *simTolerance,
	})
	if err != nil {
		return err
	}
	if *showProgress {
		fd := os.Stderr.Fd()
		req.Progress = newProgressPrinter(os.Stderr, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	}

	client, err := newClient(sf, cfg.ExportsDir, *verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s dims=%dx%dx%d pop=%d rounds=%d seed=%d elapsed=%s\n",
		summary.RunID, req.Dims[0], req.Dims[1], req.Dims[2], req.Population, req.Rounds, req.Seed,
		summary.Elapsed.Round(time.Millisecond))
	for i, best := range summary.BestByRound {
		fmt.Printf("round=%d best_score=%d\n", i+1, best)
	}
	fmt.Printf("initial_min_score=%d final_best_score=%d best_id=%s best_blocks=%s\n",
		summary.InitialMinScore, summary.BestScore, summary.BestID, humanize.Comma(int64(summary.BestBlocks)))
	if *showRender {
		fmt.Print(summary.BestRender)
	}
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, ruingen.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s dims=%dx%dx%d pop=%d rounds=%d seed=%d score=%s final_best_score=%d\n",
			r.RunID,
			createdAgo(r.CreatedAtUTC),
			r.Dims[0], r.Dims[1], r.Dims[2],
			r.Population,
			r.Rounds,
			r.Seed,
			r.Scorer,
			r.FinalBestScore,
		)
	}
	return nil
}

func runShow(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit run record and best blueprint as JSON")
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(*runID, *latest, "show"); err != nil {
		return err
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	shown, err := client.Show(ctx, ruingen.RunRef{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, map[string]any{
			"run":     shown.Run,
			"best":    shown.Best,
			"summary": shown.Summary,
		})
	}

	r := shown.Run
	fmt.Printf("run_id=%s dims=%dx%dx%d pop=%d rounds=%d elites=%d survivors=%d seed=%d\n",
		r.ID, r.Dims[0], r.Dims[1], r.Dims[2], r.PopulationSize, r.Rounds, r.EliteCount, r.SurvivorCount, r.Seed)
	fmt.Printf("score=%s selection=%s stability=%s\n", r.Scorer, r.Selection, r.Stability)
	fmt.Printf("best_score=%d design_count=%d fingerprint=%s\n", shown.Best.Score, len(shown.Best.ValidIDs), shown.Best.Fingerprint)
	if shown.Summary.RunID != "" {
		fmt.Printf("first_best=%d improvement=%d stalled_rounds=%d\n",
			shown.Summary.FirstBest, shown.Summary.Improvement, shown.Summary.StalledRounds)
	}
	fmt.Print(shown.Render)
	return nil
}

func runFitness(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	req, jsonOut, sf := historyFlags(fs, cfg, "fitness history", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(req.runID(), *req.latest, "fitness"); err != nil {
		return err
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, req.request())
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, history)
	}
	for i, best := range history {
		fmt.Printf("round=%d best_score=%d\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	req, jsonOut, sf := historyFlags(fs, cfg, "diagnostics", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(req.runID(), *req.latest, "diagnostics"); err != nil {
		return err
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, req.request())
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("round=%d best=%d mean=%.3f min=%d mean_blocks=%.2f unique=%d mutations=%d unstable=%d failed_placements=%d\n",
			d.Round,
			d.BestScore,
			d.MeanScore,
			d.MinScore,
			d.MeanBlocks,
			d.UniqueDesigns,
			d.Mutations,
			d.UnstableMutations,
			d.FailedPlacements,
		)
	}
	return nil
}

func runLineage(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	req, jsonOut, sf := historyFlags(fs, cfg, "lineage", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(req.runID(), *req.latest, "lineage"); err != nil {
		return err
	}

	client, err := newClient(sf, cfg.ExportsDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, req.request())
	if err != nil {
		return err
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, lineage)
	}
	for _, rec := range lineage {
		fmt.Printf("round=%d id=%s parent_id=%s op=%s stable=%t score=%d fingerprint=%s\n",
			rec.Round,
			rec.IndividualID,
			rec.ParentID,
			rec.Operation,
			rec.Stable,
			rec.Score,
			rec.Fingerprint,
		)
	}
	return nil
}

func runExport(ctx context.Context, cfg envConfig, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", cfg.ExportsDir, "export output directory")
	name := fs.String("name", "", "scene asset name (defaults to the run id)")
	force := fs.Bool("force", false, "replace an existing scene asset without asking")
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := newClient(sf, *outDir, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fd := os.Stdin.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	exported, err := client.Export(ctx, ruingen.ExportRequest{
		RunRef:  ruingen.RunRef{RunID: *runID, Latest: *latest},
		OutDir:  *outDir,
		Name:    *name,
		Confirm: confirmReplace(os.Stdin, os.Stderr, interactive, *force),
	})
	if err != nil {
		return err
	}

	size := "n/a"
	if info, err := os.Stat(exported.ScenePath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("exported run_id=%s to=%s scene=%s scene_size=%s\n", exported.RunID, exported.Directory, exported.ScenePath, size)
	return nil
}

type historyArgs struct {
	id     *string
	latest *bool
	limit  *int
}

func historyFlags(fs *flag.FlagSet, cfg envConfig, what string, defaultLimit int) (historyArgs, *bool, storeFlags) {
	args := historyArgs{
		id:     fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, fmt.Sprintf("show %s for the most recent run from run index", what)),
		limit:  fs.Int("limit", defaultLimit, "max rows to print (<=0 for all)"),
	}
	jsonOut := fs.Bool("json", false, fmt.Sprintf("emit %s as JSON", what))
	return args, jsonOut, addStoreFlags(fs, cfg)
}

func (a historyArgs) runID() string {
	return *a.id
}

func (a historyArgs) request() ruingen.HistoryRequest {
	limit := *a.limit
	if limit < 0 {
		limit = 0
	}
	return ruingen.HistoryRequest{
		RunRef: ruingen.RunRef{RunID: *a.id, Latest: *a.latest},
		Limit:  limit,
	}
}

func newClient(sf storeFlags, exportsDir string, verbose bool) (*ruingen.Client, error) {
	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return ruingen.New(ruingen.Options{
		StoreKind:  *sf.store,
		DBPath:     *sf.dbPath,
		RunsDir:    *sf.runsDir,
		ExportsDir: exportsDir,
		Logger:     logger,
	})
}

func checkRunRef(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

// newProgressPrinter draws a redrawn bar on a terminal and one line per
// completed tenth otherwise.
func newProgressPrinter(w io.Writer, tty bool) evo.ProgressFunc {
	const width = 30
	lastDecile := -1
	return func(fraction float64, message string) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		if tty {
			filled := int(fraction * width)
			fmt.Fprintf(w, "\r[%s%s] %3.0f%% %-40s", strings.Repeat("#", filled), strings.Repeat(".", width-filled), fraction*100, message)
			if fraction == 1 {
				fmt.Fprintln(w)
			}
			return
		}
		decile := int(fraction * 10)
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		fmt.Fprintf(w, "progress %3d%% %s\n", decile*10, message)
	}
}

// confirmReplace asks on out and reads the answer from in. Without a
// terminal nothing is replaced unless force is set.
func confirmReplace(in io.Reader, out io.Writer, interactive, force bool) func(string) bool {
	return func(path string) bool {
		if force {
			return true
		}
		if !interactive {
			return false
		}
		fmt.Fprintf(out, "%s exists, replace it? [y/N] ", path)
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func createdAgo(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return fmt.Sprintf("%q", humanize.Time(t))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: ruingenctl <init|run|runs|show|fitness|diagnostics|lineage|export> [flags]", msg)
}
