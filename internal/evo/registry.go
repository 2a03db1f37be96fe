package evo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrScorerExists   = errors.New("scorer already registered")
	ErrScorerNotFound = errors.New("scorer not found")
)

var scorerRegistry = struct {
	mu sync.RWMutex
	m  map[string]Scorer
}{
	m: builtinScorers(),
}

func builtinScorers() map[string]Scorer {
	return map[string]Scorer{
		ScoreCoveredVolume: CoveredVolume{},
		ScoreBlockCount:    BlockCount{},
		ScoreRoofedBlocks:  RoofedBlocks(),
	}
}

// RegisterScorer makes s resolvable by its name.
func RegisterScorer(s Scorer) error {
	if s == nil {
		return errors.New("scorer is required")
	}
	name := s.Name()
	if name == "" {
		return errors.New("scorer name is required")
	}
	if w, ok := s.(WeightedScore); ok {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	scorerRegistry.mu.Lock()
	defer scorerRegistry.mu.Unlock()

	if _, exists := scorerRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrScorerExists, name)
	}
	scorerRegistry.m[name] = s
	return nil
}

// ScorerFromName resolves a registered scorer. An empty name selects covered
// volume.
func ScorerFromName(name string) (Scorer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ScoreCoveredVolume
	}

	scorerRegistry.mu.RLock()
	s, ok := scorerRegistry.m[name]
	scorerRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScorerNotFound, name)
	}
	return s, nil
}

func ListScorers() []string {
	scorerRegistry.mu.RLock()
	defer scorerRegistry.mu.RUnlock()

	names := make([]string, 0, len(scorerRegistry.m))
	for name := range scorerRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetScorerRegistryForTests() {
	scorerRegistry.mu.Lock()
	defer scorerRegistry.mu.Unlock()
	scorerRegistry.m = builtinScorers()
}
