package blueprint

import "fmt"

// Library is an ordered palette of seed designs used as mutation stamps. A
// Library is immutable once built and may be shared between goroutines;
// designs are copied on the way in and on the way out.
type Library struct {
	designs []*Blueprint
}

// NewLibrary builds a library from the given designs. The library must hold
// at least one design and every design must hold at least one block.
func NewLibrary(designs ...*Blueprint) (*Library, error) {
	if len(designs) == 0 {
		return nil, fmt.Errorf("library has no designs: %w", ErrEmptyDesign)
	}
	l := &Library{designs: make([]*Blueprint, 0, len(designs))}
	for i, design := range designs {
		if design == nil || design.BlockCount() == 0 {
			return nil, fmt.Errorf("library design %d: %w", i, ErrEmptyDesign)
		}
		l.designs = append(l.designs, design.Clone())
	}
	return l, nil
}

// DefaultLibrary holds a single block and 2- and 3-block beams along X.
func DefaultLibrary() *Library {
	return &Library{designs: []*Blueprint{Beam(1), Beam(2), Beam(3)}}
}

// With returns a new library holding l's designs followed by extra.
func (l *Library) With(extra ...*Blueprint) (*Library, error) {
	all := make([]*Blueprint, 0, len(l.designs)+len(extra))
	all = append(all, l.designs...)
	all = append(all, extra...)
	return NewLibrary(all...)
}

func (l *Library) Len() int {
	return len(l.designs)
}

// Design returns a copy of the i-th design.
func (l *Library) Design(i int) *Blueprint {
	return l.designs[i].Clone()
}

// Beam is a length x 1 x 1 row of blocks sharing id 1.
func Beam(length int) *Blueprint {
	b := mustNew(length, 1, 1)
	for x := 0; x < length; x++ {
		_ = b.AddBlock(Coord{X: x}, 1)
	}
	return b
}

// FromBlocks builds a single sub-design from absolute block positions. The
// result is the tight bounding box of the blocks, translated to the origin.
func FromBlocks(blocks []Coord) (*Blueprint, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyDesign
	}
	lo, hi := blocks[0], blocks[0]
	for _, c := range blocks[1:] {
		lo = Coord{X: min(lo.X, c.X), Y: min(lo.Y, c.Y), Z: min(lo.Z, c.Z)}
		hi = Coord{X: max(hi.X, c.X), Y: max(hi.Y, c.Y), Z: max(hi.Z, c.Z)}
	}
	b, err := New(hi.X-lo.X+1, hi.Y-lo.Y+1, hi.Z-lo.Z+1)
	if err != nil {
		return nil, err
	}
	for _, c := range blocks {
		if err := b.AddBlock(Coord{X: c.X - lo.X, Y: c.Y - lo.Y, Z: c.Z - lo.Z}, 1); err != nil {
			return nil, err
		}
	}
	return b, nil
}
