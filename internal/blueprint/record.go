package blueprint

import (
	"fmt"

	"ruingen/internal/model"
)

// Record converts b to its persisted form. Version fields are left for the
// caller to stamp.
func (b *Blueprint) Record() model.BlueprintRecord {
	points := b.AttachmentPoints()
	attachments := make([][3]int, 0, len(points))
	for _, c := range points {
		attachments = append(attachments, [3]int{c.X, c.Y, c.Z})
	}
	return model.BlueprintRecord{
		Dims:             [3]int{b.dims.X, b.dims.Y, b.dims.Z},
		NextID:           b.nextID,
		Cells:            b.Cells(),
		ValidIDs:         b.ValidIDs(),
		AttachmentPoints: attachments,
		Fingerprint:      b.Fingerprint(),
	}
}

// FromRecord restores a blueprint. The id set and attachment points are
// derived from the cells rather than trusted from the record.
func FromRecord(rec model.BlueprintRecord) (*Blueprint, error) {
	b, err := New(rec.Dims[0], rec.Dims[1], rec.Dims[2])
	if err != nil {
		return nil, err
	}
	if len(rec.Cells) != len(b.cells) {
		return nil, fmt.Errorf("%w: record has %d cells, dims %s need %d", ErrDimensionMismatch, len(rec.Cells), b.dims.DimsString(), len(b.cells))
	}
	copy(b.cells, rec.Cells)
	b.nextID = rec.NextID
	for i, v := range b.cells {
		if v < 0 {
			return nil, fmt.Errorf("%w: cell %d holds %d", ErrInvalidID, i, v)
		}
		if v == 0 {
			continue
		}
		b.validIDs[v] = struct{}{}
		if b.nextID <= v {
			b.nextID = v + 1
		}
	}
	b.rebuildAttachments()
	return b, nil
}
