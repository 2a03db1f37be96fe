package evo

import (
	"fmt"
	"strings"

	"ruingen/internal/blueprint"
)

const (
	ScoreCoveredVolume = "covered_volume"
	ScoreBlockCount    = "block_count"
	ScoreRoofedBlocks  = "roofed_blocks"
)

// Scorer rates a blueprint with a non-negative integer; higher is fitter.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Name() string
	Score(bp *blueprint.Blueprint) int
}

// CoveredVolume counts, over every (x, z) column, the empty cells strictly
// below the topmost occupied cell.
type CoveredVolume struct{}

func (CoveredVolume) Name() string {
	return ScoreCoveredVolume
}

func (CoveredVolume) Score(bp *blueprint.Blueprint) int {
	dims := bp.Dims()
	cells := bp.Cells()
	total := 0
	for x := 0; x < dims.X; x++ {
		for z := 0; z < dims.Z; z++ {
			empty := 0
			covered := 0
			for y := 0; y < dims.Y; y++ {
				if cells[bp.Index(blueprint.C(x, y, z))] == 0 {
					empty++
					continue
				}
				covered = empty
			}
			total += covered
		}
	}
	return total
}

type BlockCount struct{}

func (BlockCount) Name() string {
	return ScoreBlockCount
}

func (BlockCount) Score(bp *blueprint.Blueprint) int {
	return bp.BlockCount()
}

type WeightedTerm struct {
	Scorer Scorer
	Weight int
}

// WeightedScore sums integer-weighted scorer terms.
type WeightedScore struct {
	Label string
	Terms []WeightedTerm
}

func (w WeightedScore) Name() string {
	if w.Label != "" {
		return w.Label
	}
	names := make([]string, 0, len(w.Terms))
	for _, term := range w.Terms {
		names = append(names, fmt.Sprintf("%d*%s", term.Weight, term.Scorer.Name()))
	}
	return strings.Join(names, "+")
}

func (w WeightedScore) Score(bp *blueprint.Blueprint) int {
	total := 0
	for _, term := range w.Terms {
		total += term.Weight * term.Scorer.Score(bp)
	}
	return total
}

func (w WeightedScore) Validate() error {
	if len(w.Terms) == 0 {
		return fmt.Errorf("weighted score requires at least one term")
	}
	for i, term := range w.Terms {
		if term.Scorer == nil {
			return fmt.Errorf("weighted score term %d: scorer is required", i)
		}
		if term.Weight < 0 {
			return fmt.Errorf("weighted score term %d: weight must be >= 0", i)
		}
	}
	return nil
}

// RoofedBlocks rewards covered space first and material second.
func RoofedBlocks() WeightedScore {
	return WeightedScore{
		Label: ScoreRoofedBlocks,
		Terms: []WeightedTerm{
			{Scorer: CoveredVolume{}, Weight: 2},
			{Scorer: BlockCount{}, Weight: 1},
		},
	}
}
