package blueprint

import (
	"fmt"
	"strings"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists every rotation axis in declaration order.
var Axes = []Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("unsupported rotation axis: %q", s)
	}
}

// Rotate returns a copy of b turned 90 degrees counter-clockwise (viewed from
// the positive end of axis) turns times. Negative turns rotate clockwise. The
// two extents perpendicular to axis are swapped for odd turn counts.
//
// Rotate panics if axis is not one of AxisX, AxisY or AxisZ.
func (b *Blueprint) Rotate(axis Axis, turns int) *Blueprint {
	out := b.Clone()
	for i := 0; i < ((turns%4)+4)%4; i++ {
		out.rotateOnce(axis)
	}
	out.rebuildAttachments()
	return out
}

func (b *Blueprint) rotateOnce(axis Axis) {
	d := b.dims
	var (
		dims  Coord
		remap func(Coord) Coord
	)
	switch axis {
	case AxisX:
		dims = Coord{X: d.X, Y: d.Z, Z: d.Y}
		remap = func(c Coord) Coord { return Coord{X: c.X, Y: c.Z, Z: d.Y - 1 - c.Y} }
	case AxisY:
		dims = Coord{X: d.Z, Y: d.Y, Z: d.X}
		remap = func(c Coord) Coord { return Coord{X: d.Z - 1 - c.Z, Y: c.Y, Z: c.X} }
	case AxisZ:
		dims = Coord{X: d.Y, Y: d.X, Z: d.Z}
		remap = func(c Coord) Coord { return Coord{X: d.Y - 1 - c.Y, Y: c.X, Z: c.Z} }
	default:
		panic(fmt.Sprintf("blueprint: rotation about unknown axis %v", axis))
	}

	cells := make([]int, len(b.cells))
	for x := 0; x < d.X; x++ {
		for y := 0; y < d.Y; y++ {
			for z := 0; z < d.Z; z++ {
				c := Coord{X: x, Y: y, Z: z}
				n := remap(c)
				cells[(n.X*dims.Y+n.Y)*dims.Z+n.Z] = b.cells[b.Index(c)]
			}
		}
	}
	b.dims = dims
	b.cells = cells
}
