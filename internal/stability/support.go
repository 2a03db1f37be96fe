package stability

import "ruingen/internal/blueprint"

// SupportChecker treats each sub-design as a welded rigid body. A body is
// grounded when one of its cells rests on the floor or sits directly above a
// cell of another grounded body; the blueprint is stable when every body is
// grounded.
type SupportChecker struct{}

func (SupportChecker) IsStable(bp *blueprint.Blueprint) bool {
	return len(Ungrounded(bp)) == 0
}

// Ungrounded returns the sorted ids of sub-designs with no path to the floor.
func Ungrounded(bp *blueprint.Blueprint) []int {
	dims := bp.Dims()
	cells := bp.Cells()

	// below[id] lists the ids directly underneath any cell of id.
	below := make(map[int]map[int]struct{})
	grounded := make(map[int]bool)
	for x := 0; x < dims.X; x++ {
		for y := 0; y < dims.Y; y++ {
			for z := 0; z < dims.Z; z++ {
				id := cells[bp.Index(blueprint.C(x, y, z))]
				if id == 0 {
					continue
				}
				if _, ok := grounded[id]; !ok {
					grounded[id] = false
				}
				if y == 0 {
					grounded[id] = true
					continue
				}
				under := cells[bp.Index(blueprint.C(x, y-1, z))]
				if under == 0 || under == id {
					continue
				}
				set := below[id]
				if set == nil {
					set = make(map[int]struct{})
					below[id] = set
				}
				set[under] = struct{}{}
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for id, ok := range grounded {
			if ok {
				continue
			}
			for under := range below[id] {
				if grounded[under] {
					grounded[id] = true
					changed = true
					break
				}
			}
		}
	}

	var out []int
	for _, id := range bp.ValidIDs() {
		if !grounded[id] {
			out = append(out, id)
		}
	}
	return out
}
