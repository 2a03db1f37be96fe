package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"ruingen/internal/storage"
	"ruingen/pkg/ruingen"
)

// envConfig holds backend locations shared by every subcommand. Flags
// override these.
type envConfig struct {
	Store      string `env:"RUINGEN_STORE"`
	DBPath     string `env:"RUINGEN_DB_PATH"     envDefault:"ruingen.db"`
	RunsDir    string `env:"RUINGEN_RUNS_DIR"    envDefault:"runs"`
	ExportsDir string `env:"RUINGEN_EXPORTS_DIR" envDefault:"exports"`
}

func loadEnvConfig() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Store == "" {
		cfg.Store = storage.DefaultStoreKind()
	}
	return cfg, nil
}

type storeFlags struct {
	store   *string
	dbPath  *string
	runsDir *string
}

func addStoreFlags(fs *flag.FlagSet, cfg envConfig) storeFlags {
	return storeFlags{
		store:   fs.String("store", cfg.Store, "store backend: memory|sqlite"),
		dbPath:  fs.String("db-path", cfg.DBPath, "sqlite database path"),
		runsDir: fs.String("runs-dir", cfg.RunsDir, "run artifacts directory"),
	}
}

// fileConfig is a run configuration file. YAML is a superset of JSON, so
// either format decodes. Absent keys keep the defaults.
type fileConfig struct {
	RunID             *string   `yaml:"run_id"`
	Dims              []int     `yaml:"dims"`
	Population        *int      `yaml:"population"`
	Rounds            *int      `yaml:"rounds"`
	Elites            *int      `yaml:"elites"`
	Survivors         *int      `yaml:"survivors"`
	DeleteChance      *float64  `yaml:"delete_chance"`
	MutationAttempts  *int      `yaml:"mutation_attempts"`
	PlacementAttempts *int      `yaml:"placement_attempts"`
	InitMutations     *int      `yaml:"init_mutations"`
	Seed              *int64    `yaml:"seed"`
	Workers           *int      `yaml:"workers"`
	Score             *string   `yaml:"score"`
	Selection         *string   `yaml:"selection"`
	Stability         *string   `yaml:"stability"`
	SimDuration       *string   `yaml:"sim_duration"`
	SimStep           *string   `yaml:"sim_step"`
	SimTolerance      *float64  `yaml:"sim_tolerance"`
	Designs           [][][]int `yaml:"designs"`
}

func loadRunRequestFromConfig(path string) (ruingen.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ruingen.RunRequest{}, err
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ruingen.RunRequest{}, err
	}
	return cfg.apply(ruingen.DefaultRunRequest())
}

func (c fileConfig) apply(req ruingen.RunRequest) (ruingen.RunRequest, error) {
	if c.RunID != nil {
		req.RunID = *c.RunID
	}
	if c.Dims != nil {
		if len(c.Dims) != 3 {
			return req, fmt.Errorf("dims must have 3 values, got %d", len(c.Dims))
		}
		req.Dims = [3]int{c.Dims[0], c.Dims[1], c.Dims[2]}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&req.Population, c.Population)
	setInt(&req.Rounds, c.Rounds)
	setInt(&req.Elites, c.Elites)
	setInt(&req.Survivors, c.Survivors)
	setInt(&req.MutationAttempts, c.MutationAttempts)
	setInt(&req.PlacementAttempts, c.PlacementAttempts)
	setInt(&req.InitMutations, c.InitMutations)
	setInt(&req.Workers, c.Workers)
	if c.DeleteChance != nil {
		req.DeleteChance = *c.DeleteChance
	}
	if c.Seed != nil {
		req.Seed = *c.Seed
	}
	if c.Score != nil {
		req.Scorer = *c.Score
	}
	if c.Selection != nil {
		req.Selection = *c.Selection
	}
	if c.Stability != nil {
		req.Stability = *c.Stability
	}
	if c.SimDuration != nil {
		d, err := time.ParseDuration(*c.SimDuration)
		if err != nil {
			return req, fmt.Errorf("sim_duration: %w", err)
		}
		req.SimDuration = d
	}
	if c.SimStep != nil {
		d, err := time.ParseDuration(*c.SimStep)
		if err != nil {
			return req, fmt.Errorf("sim_step: %w", err)
		}
		req.SimStep = d
	}
	if c.SimTolerance != nil {
		req.SimTolerance = *c.SimTolerance
	}
	for i, design := range c.Designs {
		blocks := make([][3]int, 0, len(design))
		for j, b := range design {
			if len(b) != 3 {
				return req, fmt.Errorf("design %d block %d must have 3 coordinates", i, j)
			}
			blocks = append(blocks, [3]int{b[0], b[1], b[2]})
		}
		req.ExtraDesigns = append(req.ExtraDesigns, blocks)
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (ruingen.RunRequest, error) {
	if configPath == "" {
		return ruingen.DefaultRunRequest(), nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return ruingen.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

// overrideFromFlags copies the value of every set flag into req.
func overrideFromFlags(req *ruingen.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "dims":
			dims, err := parseDims(v.(string))
			if err != nil {
				return err
			}
			req.Dims = dims
		case "pop":
			req.Population = v.(int)
		case "rounds":
			req.Rounds = v.(int)
		case "elites":
			req.Elites = v.(int)
		case "survivors":
			req.Survivors = v.(int)
		case "delete-chance":
			req.DeleteChance = v.(float64)
		case "mutation-attempts":
			req.MutationAttempts = v.(int)
		case "placement-attempts":
			req.PlacementAttempts = v.(int)
		case "init-mutations":
			req.InitMutations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "score":
			req.Scorer = v.(string)
		case "selection":
			req.Selection = v.(string)
		case "stability":
			req.Stability = v.(string)
		case "sim-duration":
			req.SimDuration = v.(time.Duration)
		case "sim-step":
			req.SimStep = v.(time.Duration)
		case "sim-tolerance":
			req.SimTolerance = v.(float64)
		}
	}
	return nil
}

// parseDims accepts "XxYxZ" or "X,Y,Z".
func parseDims(s string) ([3]int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		parts = strings.Split(s, ",")
	}
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("invalid dims %q: want XxYxZ", s)
	}
	var dims [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, fmt.Errorf("invalid dims %q: %w", s, err)
		}
		if v < 0 {
			return [3]int{}, fmt.Errorf("invalid dims %q: values must be >= 0", s)
		}
		dims[i] = v
	}
	return dims, nil
}
