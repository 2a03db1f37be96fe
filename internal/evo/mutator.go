package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"

	"ruingen/internal/blueprint"
	"ruingen/internal/stability"
)

const (
	MaxMutationAttempts  = 3
	MaxPlacementAttempts = 3
	NumInitMutations     = 10
	DefaultDeleteChance  = 0.1

	// rotation magnitudes are drawn from [0, maxRotationTurns).
	maxRotationTurns = 3
)

type MutatorConfig struct {
	Library              *blueprint.Library
	Oracle               stability.Oracle
	DeleteChance         float64
	MaxMutationAttempts  int
	MaxPlacementAttempts int
	InitMutations        int
	Logger               *log.Logger
}

func DefaultMutatorConfig() MutatorConfig {
	return MutatorConfig{
		Library:              blueprint.DefaultLibrary(),
		Oracle:               stability.SupportChecker{},
		DeleteChance:         DefaultDeleteChance,
		MaxMutationAttempts:  MaxMutationAttempts,
		MaxPlacementAttempts: MaxPlacementAttempts,
		InitMutations:        NumInitMutations,
	}
}

// Mutator adds library designs at attachment points or deletes whole
// sub-designs, retrying until the stability oracle accepts the result.
type Mutator struct {
	cfg    MutatorConfig
	logger *log.Logger
}

func NewMutator(cfg MutatorConfig) (*Mutator, error) {
	if cfg.Library == nil {
		return nil, errors.New("design library is required")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("stability oracle is required")
	}
	if cfg.DeleteChance < 0 || cfg.DeleteChance > 1 {
		return nil, fmt.Errorf("delete chance must be in [0, 1]: %v", cfg.DeleteChance)
	}
	if cfg.MaxMutationAttempts <= 0 {
		return nil, errors.New("mutation attempts must be > 0")
	}
	if cfg.MaxPlacementAttempts <= 0 {
		return nil, errors.New("placement attempts must be > 0")
	}
	if cfg.InitMutations < 0 {
		return nil, errors.New("init mutations must be >= 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Mutator{cfg: cfg, logger: logger}, nil
}

func (m *Mutator) Name() string {
	return "add_delete"
}

func (m *Mutator) Apply(ctx context.Context, rng *rand.Rand, bp *blueprint.Blueprint) (MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return MutationResult{}, err
	}
	if rng == nil {
		return MutationResult{}, fmt.Errorf("random source is required")
	}
	if bp == nil {
		return MutationResult{}, fmt.Errorf("blueprint is required")
	}
	return m.Mutate(rng, bp), nil
}

// Mutate returns a mutated copy of bp. The first stable attempt wins;
// otherwise the last attempt is returned with Stable unset.
func (m *Mutator) Mutate(rng *rand.Rand, bp *blueprint.Blueprint) MutationResult {
	var res MutationResult
	for attempt := 1; attempt <= m.cfg.MaxMutationAttempts; attempt++ {
		candidate := bp.Clone()
		op := m.mutateUnstable(rng, candidate)
		res = MutationResult{Blueprint: candidate, Operation: op, Attempts: attempt}
		if m.cfg.Oracle.IsStable(candidate) {
			res.Stable = true
			return res
		}
	}
	m.logger.Printf("[Mutator] no stable %s after %d attempts, keeping last attempt", res.Operation, res.Attempts)
	return res
}

// Randomize builds a fresh blueprint of the given dimensions by chaining
// InitMutations mutations from an empty grid.
func (m *Mutator) Randomize(rng *rand.Rand, dims blueprint.Coord) (*blueprint.Blueprint, error) {
	bp, err := blueprint.NewFromDims(dims)
	if err != nil {
		return nil, err
	}
	for i := 0; i < m.cfg.InitMutations; i++ {
		bp = m.Mutate(rng, bp).Blueprint
	}
	return bp, nil
}

func (m *Mutator) mutateUnstable(rng *rand.Rand, bp *blueprint.Blueprint) string {
	if bp.DesignCount() == 0 || rng.Float64() > m.cfg.DeleteChance {
		return m.add(rng, bp)
	}
	ids := bp.ValidIDs()
	bp.DeleteID(ids[rng.Intn(len(ids))])
	return OpDelete
}

func (m *Mutator) add(rng *rand.Rand, bp *blueprint.Blueprint) string {
	lib := m.cfg.Library
	for attempt := 0; attempt < m.cfg.MaxPlacementAttempts; attempt++ {
		design := lib.Design(rng.Intn(lib.Len()))
		axis := blueprint.Axes[rng.Intn(len(blueprint.Axes))]
		design = design.Rotate(axis, rng.Intn(maxRotationTurns))

		var offsets []blueprint.Coord
		for _, p := range bp.AttachmentPoints() {
			if !bp.DesignCollides(design, p) {
				offsets = append(offsets, p)
			}
		}
		if len(offsets) == 0 {
			continue
		}
		bp.ApplyDesign(design, offsets[rng.Intn(len(offsets))])
		return OpAdd
	}
	m.logger.Printf("[Mutator] failed to place a design after %d attempts", m.cfg.MaxPlacementAttempts)
	return OpNoop
}
