package evo

import (
	"context"
	"math/rand"

	"ruingen/internal/blueprint"
)

// Operation names reported by mutation strategies.
const (
	OpAdd    = "add"
	OpDelete = "delete"
	OpNoop   = "noop"
)

// MutationResult is the outcome of one mutation step. Stable is false when
// every attempt left the blueprint unstable and the last attempt was kept.
type MutationResult struct {
	Blueprint *blueprint.Blueprint
	Operation string
	Attempts  int
	Stable    bool
}

// Operator produces a mutated copy of bp. It must not modify bp and must draw
// all randomness from rng.
type Operator interface {
	Name() string
	Apply(ctx context.Context, rng *rand.Rand, bp *blueprint.Blueprint) (MutationResult, error)
}
