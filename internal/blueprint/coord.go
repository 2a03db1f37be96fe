package blueprint

import "fmt"

// Coord is a discrete 3D grid position or extent. It is comparable and can be
// used directly as a map key.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func C(x, y, z int) Coord {
	return Coord{X: x, Y: y, Z: z}
}

func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// Volume is the cell count of a box with extents c.
func (c Coord) Volume() int {
	return c.X * c.Y * c.Z
}

// InBox reports whether c lies in [0, dims) on every axis.
func (c Coord) InBox(dims Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 && c.X < dims.X && c.Y < dims.Y && c.Z < dims.Z
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// DimsString formats c as extents, e.g. "4 x 5 x 4".
func (c Coord) DimsString() string {
	return fmt.Sprintf("%d x %d x %d", c.X, c.Y, c.Z)
}

func lessCoord(a, b Coord) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
