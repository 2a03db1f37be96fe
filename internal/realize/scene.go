package realize

import (
	"sort"

	"ruingen/internal/blueprint"
)

// Box is an axis-aligned collider in world units. Cell (x, y, z) occupies the
// unit cube [x, x+1) x [y, y+1) x [z, z+1).
type Box struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Body is one rigid group: every cell of a sub-design, welded together.
type Body struct {
	ID        int               `json:"id"`
	Cells     []blueprint.Coord `json:"cells"`
	Colliders []Box             `json:"colliders"`
	Center    [3]float64        `json:"center"`
}

func (b Body) Mass() int {
	return len(b.Cells)
}

type Scene struct {
	Dims   blueprint.Coord `json:"dims"`
	Bodies []Body          `json:"bodies"`
}

func (s Scene) BlockCount() int {
	n := 0
	for _, body := range s.Bodies {
		n += len(body.Cells)
	}
	return n
}

// BuildScene groups the occupied cells of bp into one body per sub-design id,
// ordered by id, with one unit box collider per cell.
func BuildScene(bp *blueprint.Blueprint) Scene {
	dims := bp.Dims()
	cells := bp.Cells()
	byID := make(map[int]*Body)
	for x := 0; x < dims.X; x++ {
		for y := 0; y < dims.Y; y++ {
			for z := 0; z < dims.Z; z++ {
				c := blueprint.C(x, y, z)
				id := cells[bp.Index(c)]
				if id == 0 {
					continue
				}
				body := byID[id]
				if body == nil {
					body = &Body{ID: id}
					byID[id] = body
				}
				body.Cells = append(body.Cells, c)
				body.Colliders = append(body.Colliders, unitBox(c))
			}
		}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	scene := Scene{Dims: dims, Bodies: make([]Body, 0, len(ids))}
	for _, id := range ids {
		body := byID[id]
		body.Center = centerOf(body.Cells)
		scene.Bodies = append(scene.Bodies, *body)
	}
	return scene
}

func unitBox(c blueprint.Coord) Box {
	return Box{
		Min: [3]float64{float64(c.X), float64(c.Y), float64(c.Z)},
		Max: [3]float64{float64(c.X + 1), float64(c.Y + 1), float64(c.Z + 1)},
	}
}

func centerOf(cells []blueprint.Coord) [3]float64 {
	var sum [3]float64
	for _, c := range cells {
		sum[0] += float64(c.X) + 0.5
		sum[1] += float64(c.Y) + 0.5
		sum[2] += float64(c.Z) + 0.5
	}
	n := float64(len(cells))
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}
