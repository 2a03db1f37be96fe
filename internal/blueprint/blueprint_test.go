package blueprint

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlueprint(t *testing.T, x, y, z int) *Blueprint {
	t.Helper()
	b, err := New(x, y, z)
	require.NoError(t, err)
	return b
}

func addBlocks(t *testing.T, b *Blueprint, id int, coords ...Coord) {
	t.Helper()
	for _, c := range coords {
		require.NoError(t, b.AddBlock(c, id))
	}
}

func floorRow(dims Coord) []Coord {
	var out []Coord
	for x := 0; x < dims.X; x++ {
		for z := 0; z < dims.Z; z++ {
			out = append(out, C(x, 0, z))
		}
	}
	return out
}

func TestCoordValueEquality(t *testing.T) {
	a := C(1, 2, 3)
	seen := map[Coord]bool{a: true}
	assert.True(t, seen[C(1, 2, 3)])
	assert.False(t, seen[C(2, 3, 4)])
	assert.Equal(t, C(3, 5, 7), a.Add(C(2, 3, 4)))
	assert.Equal(t, 6, a.Volume())
}

func TestNewRejectsNegativeDimensions(t *testing.T) {
	for _, dims := range []Coord{C(-1, 2, 3), C(1, -2, 3), C(1, 2, -3)} {
		_, err := NewFromDims(dims)
		require.ErrorIs(t, err, ErrInvalidDimension, "dims %v", dims)
	}
}

func TestNewIsEmptyWithFloorAttachments(t *testing.T) {
	for _, dims := range []Coord{C(0, 0, 0), C(1, 2, 3), C(5, 7, 1), C(4, 4, 4)} {
		b, err := NewFromDims(dims)
		require.NoError(t, err)

		cells := b.Cells()
		require.Len(t, cells, dims.Volume())
		for _, v := range cells {
			require.Zero(t, v)
		}
		assert.Empty(t, b.ValidIDs())
		assert.Equal(t, 0, b.NextID())
		if dims.Y > 0 {
			assert.Equal(t, floorRow(dims), b.AttachmentPoints())
		}
	}
}

func TestCellsIsASnapshot(t *testing.T) {
	b := newTestBlueprint(t, 2, 2, 2)
	cells := b.Cells()
	cells[0] = 42
	v, err := b.At(C(0, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestAddBlock(t *testing.T) {
	b := newTestBlueprint(t, 3, 3, 3)
	require.NoError(t, b.AddBlock(C(0, 0, 0), 1))
	require.NoError(t, b.AddBlock(C(1, 2, 0), 3))

	v, err := b.At(C(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = b.At(C(1, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, []int{1, 3}, b.ValidIDs())
	assert.Equal(t, 4, b.NextID())
	assert.False(t, b.IsAttachmentPoint(C(0, 0, 0)))
	assert.True(t, b.IsAttachmentPoint(C(0, 1, 0)))
}

func TestAddBlockRejectsOutOfBoundsAndInvalidIDs(t *testing.T) {
	b := newTestBlueprint(t, 3, 3, 3)
	require.ErrorIs(t, b.AddBlock(C(3, 0, 0), 1), ErrIndexOutOfBounds)
	require.ErrorIs(t, b.AddBlock(C(0, -1, 0), 1), ErrIndexOutOfBounds)
	require.ErrorIs(t, b.AddBlock(C(0, 0, 0), 0), ErrInvalidID)
	_, err := b.At(C(0, 0, 9))
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestAddBlockOverwriteUnregistersVanishedID(t *testing.T) {
	b := newTestBlueprint(t, 2, 1, 1)
	addBlocks(t, b, 1, C(0, 0, 0))
	addBlocks(t, b, 2, C(0, 0, 0))
	assert.Equal(t, []int{2}, b.ValidIDs())
}

func TestCopyInto(t *testing.T) {
	a := newTestBlueprint(t, 3, 3, 3)
	addBlocks(t, a, 1, C(0, 0, 0), C(0, 0, 1), C(0, 0, 2))

	mismatched := newTestBlueprint(t, 2, 3, 3)
	require.ErrorIs(t, a.CopyInto(mismatched), ErrDimensionMismatch)
	require.ErrorIs(t, a.CopyInto(nil), ErrDimensionMismatch)

	target := newTestBlueprint(t, 3, 3, 3)
	require.NoError(t, a.CopyInto(target))
	if diff := cmp.Diff(a.Cells(), target.Cells()); diff != "" {
		t.Fatalf("copied cells mismatch (-src +dst):\n%s", diff)
	}
	assert.Equal(t, a.ValidIDs(), target.ValidIDs())
	assert.Equal(t, a.AttachmentPoints(), target.AttachmentPoints())
	assert.Equal(t, a.NextID(), target.NextID())

	// Mutating the source must not leak into the copy.
	addBlocks(t, a, 7, C(2, 0, 2))
	a.DeleteID(1)
	assert.Equal(t, []int{1}, target.ValidIDs())
	v, err := target.At(C(2, 0, 2))
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, target.IsAttachmentPoint(C(0, 0, 0)))
	assert.True(t, target.IsAttachmentPoint(C(2, 0, 2)))
}

func TestCloneIsIndependent(t *testing.T) {
	a := newTestBlueprint(t, 2, 2, 2)
	addBlocks(t, a, 1, C(0, 0, 0))
	b := a.Clone()
	addBlocks(t, b, 2, C(1, 0, 1))
	assert.Equal(t, []int{1}, a.ValidIDs())
	assert.Equal(t, []int{1, 2}, b.ValidIDs())
}

func TestRotateMatchesAxisRemaps(t *testing.T) {
	xLine := newTestBlueprint(t, 3, 3, 3)
	addBlocks(t, xLine, 1, C(0, 0, 0), C(1, 0, 0), C(2, 0, 0))

	yLine := xLine.Rotate(AxisZ, 1)
	zLine := xLine.Rotate(AxisY, 1)

	for _, c := range []Coord{C(2, 0, 0), C(2, 1, 0), C(2, 2, 0)} {
		v, err := yLine.At(c)
		require.NoError(t, err)
		assert.Equal(t, 1, v, "y line at %v", c)
	}
	for _, c := range []Coord{C(2, 0, 0), C(2, 0, 1), C(2, 0, 2)} {
		v, err := zLine.At(c)
		require.NoError(t, err)
		assert.Equal(t, 1, v, "z line at %v", c)
	}

	assert.Equal(t, xLine.Cells(), yLine.Rotate(AxisZ, 3).Cells())
	assert.Equal(t, xLine.Cells(), zLine.Rotate(AxisY, -1).Cells())
}

func TestRotateSwapsExtents(t *testing.T) {
	b := newTestBlueprint(t, 2, 3, 5)
	assert.Equal(t, C(2, 5, 3), b.Rotate(AxisX, 1).Dims())
	assert.Equal(t, C(5, 3, 2), b.Rotate(AxisY, 1).Dims())
	assert.Equal(t, C(3, 2, 5), b.Rotate(AxisZ, 1).Dims())
	assert.Equal(t, C(2, 3, 5), b.Rotate(AxisZ, 2).Dims())
	assert.Equal(t, C(3, 2, 5), b.Rotate(AxisZ, -1).Dims())
}

func TestRotateRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := newTestBlueprint(t, 2, 3, 4)
	dims := b.Dims()
	for i := 0; i < 10; i++ {
		c := C(rng.Intn(dims.X), rng.Intn(dims.Y), rng.Intn(dims.Z))
		require.NoError(t, b.AddBlock(c, 1+rng.Intn(5)))
	}

	for _, axis := range Axes {
		for k := 1; k <= 3; k++ {
			back := b.Rotate(axis, k).Rotate(axis, 4-k)
			require.Equal(t, dims, back.Dims(), "axis %v k=%d", axis, k)
			if diff := cmp.Diff(b.Cells(), back.Cells()); diff != "" {
				t.Fatalf("axis %v k=%d round trip mismatch (-want +got):\n%s", axis, k, diff)
			}
			assert.Equal(t, b.ValidIDs(), back.ValidIDs())
		}
		assert.Equal(t, b.Rotate(axis, 3).Cells(), b.Rotate(axis, -1).Cells())
		assert.Equal(t, b.Rotate(axis, 1).Cells(), b.Rotate(axis, 5).Cells())
	}
}

func TestRotateRebuildsAttachmentPoints(t *testing.T) {
	b := newTestBlueprint(t, 3, 1, 1)
	addBlocks(t, b, 1, C(0, 0, 0), C(1, 0, 0), C(2, 0, 0))
	upright := b.Rotate(AxisZ, 1)
	require.Equal(t, C(1, 3, 1), upright.Dims())
	assert.Empty(t, upright.AttachmentPoints())
}

func TestRotatePanicsOnUnknownAxis(t *testing.T) {
	b := newTestBlueprint(t, 1, 1, 1)
	assert.Panics(t, func() { b.Rotate(Axis(9), 1) })
}

func TestParseAxis(t *testing.T) {
	for _, axis := range Axes {
		parsed, err := ParseAxis(axis.String())
		require.NoError(t, err)
		assert.Equal(t, axis, parsed)
	}
	_, err := ParseAxis("w")
	require.Error(t, err)
}

func TestApplyDesignAssignsFreshIDs(t *testing.T) {
	composite := newTestBlueprint(t, 4, 5, 4)
	longBlock := Beam(4)

	tallBlock := newTestBlueprint(t, 2, 3, 1)
	addBlocks(t, tallBlock, 1, C(0, 0, 0), C(0, 1, 0), C(0, 2, 0))

	reallyLong := Beam(10)

	var ids []int
	record := func(c Coord) {
		v, err := composite.At(c)
		require.NoError(t, err)
		require.NotZero(t, v)
		for _, seen := range ids {
			require.NotEqual(t, seen, v, "id %d reused", v)
		}
		if len(ids) > 0 {
			require.Greater(t, v, ids[len(ids)-1])
		}
		ids = append(ids, v)
	}

	composite.ApplyDesign(longBlock, C(0, 0, 0))
	record(C(0, 0, 0))
	composite.ApplyDesign(tallBlock, C(0, 1, 0))
	record(C(0, 1, 0))
	composite.ApplyDesign(tallBlock, C(3, 1, 0))
	record(C(3, 1, 0))
	composite.ApplyDesign(reallyLong, C(0, 3, 0))
	record(C(0, 3, 0))

	left, err := composite.At(C(0, 3, 0))
	require.NoError(t, err)
	right, err := composite.At(C(3, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, left, right)

	for _, id := range composite.ValidIDs() {
		assert.Less(t, id, composite.NextID())
	}
	assert.ElementsMatch(t, ids, composite.ValidIDs())
}

func TestApplyDesignMaintainsAttachmentPoints(t *testing.T) {
	b := newTestBlueprint(t, 3, 3, 1)
	b.ApplyDesign(Beam(2), C(0, 0, 0))

	assert.False(t, b.IsAttachmentPoint(C(0, 0, 0)))
	assert.False(t, b.IsAttachmentPoint(C(1, 0, 0)))
	assert.True(t, b.IsAttachmentPoint(C(2, 0, 0)))
	assert.True(t, b.IsAttachmentPoint(C(0, 1, 0)))
	assert.True(t, b.IsAttachmentPoint(C(1, 1, 0)))
	assert.False(t, b.IsAttachmentPoint(C(2, 1, 0)))

	pillar := Beam(3).Rotate(AxisZ, 1)
	b.ApplyDesign(pillar, C(2, 0, 0))
	assert.False(t, b.IsAttachmentPoint(C(2, 0, 0)))
	assert.False(t, b.IsAttachmentPoint(C(2, 1, 0)))
	assert.False(t, b.IsAttachmentPoint(C(2, 2, 0)))
}

func TestDesignCollidesTruncatesAtBounds(t *testing.T) {
	b := newTestBlueprint(t, 3, 3, 3)
	addBlocks(t, b, 1, C(2, 0, 0))

	long := Beam(5)
	// Only the first three cells of the beam are in bounds and one overlaps.
	assert.True(t, b.DesignCollides(long, C(0, 0, 0)))
	assert.False(t, b.DesignCollides(long, C(0, 1, 0)))
	// Entirely past the edge: nothing to check, no panic.
	assert.False(t, b.DesignCollides(long, C(3, 0, 0)))
	assert.False(t, b.DesignCollides(long, C(-4, 0, 0)))
	assert.True(t, b.DesignCollides(long, C(-2, 0, 0)))

	b.ApplyDesign(long, C(0, 2, 2))
	for x := 0; x < 3; x++ {
		v, err := b.At(C(x, 2, 2))
		require.NoError(t, err)
		assert.NotZero(t, v)
	}
	assert.Equal(t, 4, b.BlockCount())
}

func TestDeleteIDRestoresEmptyGrid(t *testing.T) {
	empty := newTestBlueprint(t, 4, 4, 4)
	arch := newTestBlueprint(t, 4, 4, 4)
	assert.Equal(t, empty.Cells(), arch.Cells())

	addBlocks(t, arch, 1,
		C(0, 0, 0), C(0, 1, 0), C(0, 2, 0),
		C(2, 0, 0), C(2, 1, 0), C(2, 2, 0),
		C(0, 3, 0), C(1, 3, 0), C(2, 3, 0),
	)
	assert.NotEqual(t, empty.Cells(), arch.Cells())

	arch.DeleteID(1)
	assert.Equal(t, empty.Cells(), arch.Cells())
	assert.Empty(t, arch.ValidIDs())
	assert.Equal(t, empty.AttachmentPoints(), arch.AttachmentPoints())
	assert.Equal(t, 2, arch.NextID())
}

func TestDeleteIDThenReAddRestoresCells(t *testing.T) {
	b := newTestBlueprint(t, 4, 3, 2)
	b.ApplyDesign(Beam(3), C(0, 0, 0))
	b.ApplyDesign(Beam(2), C(1, 1, 0))
	before := b.Cells()

	id, err := b.At(C(1, 1, 0))
	require.NoError(t, err)
	b.DeleteID(id)
	assert.False(t, b.HasID(id))
	addBlocks(t, b, id, C(1, 1, 0), C(2, 1, 0))

	if diff := cmp.Diff(before, b.Cells()); diff != "" {
		t.Fatalf("cells not restored (-want +got):\n%s", diff)
	}
}

func TestDeleteIDReopensSupportedCells(t *testing.T) {
	b := newTestBlueprint(t, 3, 3, 1)
	b.ApplyDesign(Beam(3), C(0, 0, 0))
	b.ApplyDesign(Beam(1), C(1, 1, 0))
	top, err := b.At(C(1, 1, 0))
	require.NoError(t, err)

	b.DeleteID(top)
	// Cleared cell rests on the beam so it is an attachment point again.
	assert.True(t, b.IsAttachmentPoint(C(1, 1, 0)))
	assert.False(t, b.IsAttachmentPoint(C(1, 2, 0)))

	base, err := b.At(C(0, 0, 0))
	require.NoError(t, err)
	b.DeleteID(base)
	assert.Equal(t, floorRow(b.Dims()), b.AttachmentPoints())
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	b := newTestBlueprint(t, 2, 2, 2)
	addBlocks(t, b, 1, C(0, 0, 0))
	before := b.AttachmentPoints()
	b.DeleteID(5)
	b.DeleteID(0)
	assert.Equal(t, []int{1}, b.ValidIDs())
	assert.Equal(t, before, b.AttachmentPoints())
}

func TestClearResetsState(t *testing.T) {
	b := newTestBlueprint(t, 3, 2, 3)
	b.ApplyDesign(Beam(3), C(0, 0, 1))
	b.Clear()
	fresh := newTestBlueprint(t, 3, 2, 3)
	assert.Equal(t, fresh.Cells(), b.Cells())
	assert.Equal(t, fresh.AttachmentPoints(), b.AttachmentPoints())
	assert.Zero(t, b.NextID())
}

func TestFingerprintTracksCells(t *testing.T) {
	a := newTestBlueprint(t, 3, 3, 3)
	b := newTestBlueprint(t, 3, 3, 3)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	addBlocks(t, b, 1, C(1, 0, 1))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	other := newTestBlueprint(t, 3, 9, 1)
	assert.NotEqual(t, a.Fingerprint(), other.Fingerprint())
}
