package blueprint

import (
	"errors"
	"fmt"
	"hash/fnv"
	"maps"
	"sort"
	"strconv"
)

var (
	ErrInvalidDimension  = errors.New("invalid blueprint dimension")
	ErrDimensionMismatch = errors.New("blueprint dimension mismatch")
	ErrIndexOutOfBounds  = errors.New("coordinate out of bounds")
	ErrInvalidID         = errors.New("sub-design id must be > 0")
	ErrEmptyDesign       = errors.New("design has no blocks")
)

var up = Coord{Y: 1}

// Blueprint is a dense voxel grid of sub-design ids. A zero cell is empty and
// a positive cell belongs to the placed sub-design with that id.
//
// Besides the cells it keeps the set of ids present in the grid and the set of
// attachment points: empty cells that sit on the floor or directly on top of
// an occupied cell. Both sets are maintained incrementally by AddBlock,
// ApplyDesign and DeleteID.
//
// A Blueprint is not safe for concurrent mutation; use Clone to hand a copy to
// another goroutine.
type Blueprint struct {
	dims        Coord
	cells       []int
	nextID      int
	validIDs    map[int]struct{}
	attachments map[Coord]struct{}
}

// New returns an empty blueprint whose floor row is seeded as attachment
// points.
func New(x, y, z int) (*Blueprint, error) {
	if x < 0 || y < 0 || z < 0 {
		return nil, fmt.Errorf("%w: %d x %d x %d", ErrInvalidDimension, x, y, z)
	}
	b := &Blueprint{
		dims:        Coord{X: x, Y: y, Z: z},
		cells:       make([]int, x*y*z),
		validIDs:    make(map[int]struct{}),
		attachments: make(map[Coord]struct{}, x*z),
	}
	b.seedFloor()
	return b, nil
}

func NewFromDims(dims Coord) (*Blueprint, error) {
	return New(dims.X, dims.Y, dims.Z)
}

func mustNew(x, y, z int) *Blueprint {
	b, err := New(x, y, z)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Blueprint) Dims() Coord {
	return b.dims
}

func (b *Blueprint) NextID() int {
	return b.nextID
}

// Cells returns a copy of the cell array in x-major order, see Index.
func (b *Blueprint) Cells() []int {
	return append([]int(nil), b.cells...)
}

// Index maps an in-bounds coordinate to its position in Cells.
func (b *Blueprint) Index(c Coord) int {
	return (c.X*b.dims.Y+c.Y)*b.dims.Z + c.Z
}

func (b *Blueprint) At(c Coord) (int, error) {
	if !c.InBox(b.dims) {
		return 0, fmt.Errorf("%w: %s in %s", ErrIndexOutOfBounds, c, b.dims.DimsString())
	}
	return b.cells[b.Index(c)], nil
}

func (b *Blueprint) cell(c Coord) int {
	return b.cells[b.Index(c)]
}

// ValidIDs returns the ids currently present in the grid, ascending.
func (b *Blueprint) ValidIDs() []int {
	ids := make([]int, 0, len(b.validIDs))
	for id := range b.validIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (b *Blueprint) DesignCount() int {
	return len(b.validIDs)
}

func (b *Blueprint) HasID(id int) bool {
	_, ok := b.validIDs[id]
	return ok
}

// AttachmentPoints returns the current attachment points in ascending
// (x, y, z) order so that seeded callers see a stable enumeration.
func (b *Blueprint) AttachmentPoints() []Coord {
	points := make([]Coord, 0, len(b.attachments))
	for c := range b.attachments {
		points = append(points, c)
	}
	sort.Slice(points, func(i, j int) bool { return lessCoord(points[i], points[j]) })
	return points
}

func (b *Blueprint) IsAttachmentPoint(c Coord) bool {
	_, ok := b.attachments[c]
	return ok
}

func (b *Blueprint) BlockCount() int {
	n := 0
	for _, v := range b.cells {
		if v != 0 {
			n++
		}
	}
	return n
}

func (b *Blueprint) Clone() *Blueprint {
	return &Blueprint{
		dims:        b.dims,
		cells:       append([]int(nil), b.cells...),
		nextID:      b.nextID,
		validIDs:    maps.Clone(b.validIDs),
		attachments: maps.Clone(b.attachments),
	}
}

// CopyInto overwrites target with a deep copy of b. Both blueprints must have
// identical dimensions.
func (b *Blueprint) CopyInto(target *Blueprint) error {
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrDimensionMismatch)
	}
	if target.dims != b.dims {
		return fmt.Errorf("%w: source %s, target %s", ErrDimensionMismatch, b.dims.DimsString(), target.dims.DimsString())
	}
	copy(target.cells, b.cells)
	target.nextID = b.nextID
	target.validIDs = maps.Clone(b.validIDs)
	target.attachments = maps.Clone(b.attachments)
	return nil
}

// Clear resets b to its freshly constructed state.
func (b *Blueprint) Clear() {
	clear(b.cells)
	b.nextID = 0
	clear(b.validIDs)
	clear(b.attachments)
	b.seedFloor()
}

// AddBlock writes a single cell and registers id. Attachment points are
// updated as for a one-cell placement.
func (b *Blueprint) AddBlock(c Coord, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidID, id)
	}
	if !c.InBox(b.dims) {
		return fmt.Errorf("%w: %s in %s", ErrIndexOutOfBounds, c, b.dims.DimsString())
	}
	i := b.Index(c)
	prev := b.cells[i]
	b.cells[i] = id
	if prev != 0 && prev != id {
		b.dropIfAbsent(prev)
	}
	b.validIDs[id] = struct{}{}
	if b.nextID <= id {
		b.nextID = id + 1
	}
	b.markFilled(c)
	return nil
}

// DesignCollides reports whether any block of other, placed with its origin at
// offset, overlaps an occupied cell of b. Parts of other that fall outside b
// are ignored.
func (b *Blueprint) DesignCollides(other *Blueprint, offset Coord) bool {
	lo, hi := overlap(b.dims, other.dims, offset)
	for x := lo.X; x < hi.X; x++ {
		for y := lo.Y; y < hi.Y; y++ {
			for z := lo.Z; z < hi.Z; z++ {
				local := Coord{X: x, Y: y, Z: z}
				if other.cell(local) > 0 && b.cell(local.Add(offset)) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// ApplyDesign stamps other into b with its origin at offset. Every id v of
// other is relabelled to NextID()+v so stamped sub-designs never share an id
// with existing ones, and NextID advances by other.NextID(). Blocks that fall
// outside b are dropped.
func (b *Blueprint) ApplyDesign(other *Blueprint, offset Coord) {
	base := b.nextID
	b.nextID += other.nextID

	var displaced []int
	lo, hi := overlap(b.dims, other.dims, offset)
	for x := lo.X; x < hi.X; x++ {
		for y := lo.Y; y < hi.Y; y++ {
			for z := lo.Z; z < hi.Z; z++ {
				local := Coord{X: x, Y: y, Z: z}
				v := other.cell(local)
				if v <= 0 {
					continue
				}
				c := local.Add(offset)
				i := b.Index(c)
				if prev := b.cells[i]; prev != 0 {
					displaced = append(displaced, prev)
				}
				b.cells[i] = base + v
				b.validIDs[base+v] = struct{}{}
				b.markFilled(c)
			}
		}
	}
	for _, id := range displaced {
		b.dropIfAbsent(id)
	}
}

// DeleteID removes every block of the sub-design id. NextID is not reduced.
func (b *Blueprint) DeleteID(id int) {
	if _, ok := b.validIDs[id]; !ok {
		return
	}
	for x := 0; x < b.dims.X; x++ {
		for y := 0; y < b.dims.Y; y++ {
			for z := 0; z < b.dims.Z; z++ {
				c := Coord{X: x, Y: y, Z: z}
				i := b.Index(c)
				if b.cells[i] != id {
					continue
				}
				b.cells[i] = 0
				if y == 0 {
					b.attachments[c] = struct{}{}
				} else if below := b.cell(Coord{X: x, Y: y - 1, Z: z}); below != 0 && below != id {
					b.attachments[c] = struct{}{}
				}
				// The empty cell above lost its only support.
				if above := c.Add(up); above.Y < b.dims.Y && b.cell(above) == 0 {
					delete(b.attachments, above)
				}
			}
		}
	}
	delete(b.validIDs, id)
}

// Fingerprint is a stable hash of the dimensions and cell contents.
func (b *Blueprint) Fingerprint() string {
	h := fnv.New64a()
	buf := make([]byte, 0, 16)
	for _, v := range []int{b.dims.X, b.dims.Y, b.dims.Z} {
		buf = strconv.AppendInt(buf[:0], int64(v), 10)
		buf = append(buf, ',')
		_, _ = h.Write(buf)
	}
	for _, v := range b.cells {
		buf = strconv.AppendInt(buf[:0], int64(v), 10)
		buf = append(buf, ',')
		_, _ = h.Write(buf)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (b *Blueprint) markFilled(c Coord) {
	delete(b.attachments, c)
	if above := c.Add(up); above.Y < b.dims.Y && b.cell(above) == 0 {
		b.attachments[above] = struct{}{}
	}
}

func (b *Blueprint) dropIfAbsent(id int) {
	for _, v := range b.cells {
		if v == id {
			return
		}
	}
	delete(b.validIDs, id)
}

func (b *Blueprint) seedFloor() {
	if b.dims.Y == 0 {
		return
	}
	for x := 0; x < b.dims.X; x++ {
		for z := 0; z < b.dims.Z; z++ {
			b.attachments[Coord{X: x, Z: z}] = struct{}{}
		}
	}
}

// rebuildAttachments recomputes the attachment set by a full scan. Used only
// when a blueprint is produced wholesale (rotation, restore from a record).
func (b *Blueprint) rebuildAttachments() {
	clear(b.attachments)
	for x := 0; x < b.dims.X; x++ {
		for y := 0; y < b.dims.Y; y++ {
			for z := 0; z < b.dims.Z; z++ {
				c := Coord{X: x, Y: y, Z: z}
				if b.cell(c) != 0 {
					continue
				}
				if y == 0 || b.cell(Coord{X: x, Y: y - 1, Z: z}) != 0 {
					b.attachments[c] = struct{}{}
				}
			}
		}
	}
}

// overlap returns the half-open range, in other's local coordinates, of the
// cells of other that land inside a grid of size dims when placed at offset.
func overlap(dims, other, offset Coord) (lo, hi Coord) {
	lo = Coord{X: max(0, -offset.X), Y: max(0, -offset.Y), Z: max(0, -offset.Z)}
	hi = Coord{
		X: min(other.X, dims.X-offset.X),
		Y: min(other.Y, dims.Y-offset.Y),
		Z: min(other.Z, dims.Z-offset.Z),
	}
	return lo, hi
}
