// Package stability decides whether a blueprint would stand once built.
package stability

import (
	"fmt"
	"strings"

	"ruingen/internal/blueprint"
)

// Oracle answers whether a blueprint is physically stable. Implementations
// must be safe for concurrent use and must not modify bp.
type Oracle interface {
	IsStable(bp *blueprint.Blueprint) bool
}

// Func adapts a plain function to Oracle.
type Func func(bp *blueprint.Blueprint) bool

func (f Func) IsStable(bp *blueprint.Blueprint) bool {
	return f(bp)
}

// Always reports every blueprint as stable.
type Always struct{}

func (Always) IsStable(*blueprint.Blueprint) bool {
	return true
}

const (
	NameSupport  = "support"
	NameSimulate = "simulate"
	NameAlways   = "always"
)

func Names() []string {
	return []string{NameSupport, NameSimulate, NameAlways}
}

// FromName resolves a configured oracle. sim is only consulted for
// "simulate"; its zero fields take the simulator defaults.
func FromName(name string, sim Simulator) (Oracle, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSupport:
		return SupportChecker{}, nil
	case NameSimulate:
		sim = sim.withDefaults()
		if err := sim.Validate(); err != nil {
			return nil, err
		}
		return sim, nil
	case NameAlways:
		return Always{}, nil
	default:
		return nil, fmt.Errorf("unknown stability oracle: %s", name)
	}
}
