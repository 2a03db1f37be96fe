package stability

import (
	"errors"
	"time"

	"ruingen/internal/blueprint"
	"ruingen/internal/realize"
)

const (
	DefaultSimDuration  = 10 * time.Second
	DefaultSimStep      = 20 * time.Millisecond
	DefaultSimTolerance = 0.1
	DefaultGravity      = 9.81
)

// Simulator settles the realized scene under gravity. Every sub-design is a
// rigid body; a body at rest on the floor or on another resting body stays
// put, everything else accelerates downward and drops cell by cell until it
// lands. The blueprint is unstable when any body travels further than
// Tolerance within Duration.
type Simulator struct {
	Duration  time.Duration
	Step      time.Duration
	Tolerance float64
	Gravity   float64
}

// Settlement is the outcome of one simulation.
type Settlement struct {
	Elapsed         time.Duration
	MaxDisplacement float64
	Moved           []int
}

func (s Simulator) withDefaults() Simulator {
	if s.Duration == 0 {
		s.Duration = DefaultSimDuration
	}
	if s.Step == 0 {
		s.Step = DefaultSimStep
	}
	if s.Tolerance == 0 {
		s.Tolerance = DefaultSimTolerance
	}
	if s.Gravity == 0 {
		s.Gravity = DefaultGravity
	}
	return s
}

func (s Simulator) Validate() error {
	switch {
	case s.Duration < 0:
		return errors.New("simulation duration must be >= 0")
	case s.Step <= 0:
		return errors.New("simulation step must be > 0")
	case s.Tolerance < 0:
		return errors.New("simulation tolerance must be >= 0")
	case s.Gravity <= 0:
		return errors.New("gravity must be > 0")
	}
	return nil
}

func (s Simulator) IsStable(bp *blueprint.Blueprint) bool {
	res := s.Settle(bp, true)
	return res.MaxDisplacement <= s.withDefaults().Tolerance
}

type simBody struct {
	id       int
	cells    []blueprint.Coord
	velocity float64
	fall     float64
	dropped  int
}

func (b *simBody) displacement() float64 {
	return float64(b.dropped) + b.fall
}

// Settle runs the simulation. With stopEarly set it returns as soon as any
// body exceeds the tolerance.
func (s Simulator) Settle(bp *blueprint.Blueprint, stopEarly bool) Settlement {
	s = s.withDefaults()
	scene := realize.BuildScene(bp)

	bodies := make([]*simBody, len(scene.Bodies))
	occupied := make(map[blueprint.Coord]int, scene.BlockCount())
	for i, body := range scene.Bodies {
		cells := make([]blueprint.Coord, len(body.Cells))
		copy(cells, body.Cells)
		bodies[i] = &simBody{id: body.ID, cells: cells}
		for _, c := range cells {
			occupied[c] = body.ID
		}
	}

	dt := s.Step.Seconds()
	var out Settlement
	for elapsed := time.Duration(0); elapsed < s.Duration; elapsed += s.Step {
		out.Elapsed = elapsed + s.Step
		resting := restingBodies(bodies, occupied)
		if len(resting) == len(bodies) {
			break
		}

		for _, body := range bodies {
			if resting[body.id] {
				body.velocity = 0
				continue
			}
			body.velocity += s.Gravity * dt
			body.fall += body.velocity * dt
			for body.fall >= 1 && canDrop(body, occupied) {
				shiftDown(body, occupied)
				body.fall--
				body.dropped++
			}
			if !canDrop(body, occupied) {
				body.fall = 0
				body.velocity = 0
			}
			if d := body.displacement(); d > out.MaxDisplacement {
				out.MaxDisplacement = d
			}
		}
		if stopEarly && out.MaxDisplacement > s.Tolerance {
			break
		}
	}

	for _, body := range bodies {
		if body.displacement() > 0 {
			out.Moved = append(out.Moved, body.id)
		}
	}
	return out
}

// restingBodies returns the ids of bodies supported by the floor, directly or
// through a chain of other resting bodies.
func restingBodies(bodies []*simBody, occupied map[blueprint.Coord]int) map[int]bool {
	resting := make(map[int]bool, len(bodies))
	for changed := true; changed; {
		changed = false
		for _, body := range bodies {
			if resting[body.id] {
				continue
			}
			for _, c := range body.cells {
				if c.Y == 0 {
					resting[body.id] = true
					break
				}
				under, ok := occupied[blueprint.C(c.X, c.Y-1, c.Z)]
				if ok && under != body.id && resting[under] {
					resting[body.id] = true
					break
				}
			}
			if resting[body.id] {
				changed = true
			}
		}
	}
	return resting
}

func canDrop(body *simBody, occupied map[blueprint.Coord]int) bool {
	for _, c := range body.cells {
		if c.Y == 0 {
			return false
		}
		if id, ok := occupied[blueprint.C(c.X, c.Y-1, c.Z)]; ok && id != body.id {
			return false
		}
	}
	return true
}

func shiftDown(body *simBody, occupied map[blueprint.Coord]int) {
	for _, c := range body.cells {
		delete(occupied, c)
	}
	for i, c := range body.cells {
		body.cells[i] = blueprint.C(c.X, c.Y-1, c.Z)
		occupied[body.cells[i]] = body.id
	}
}
