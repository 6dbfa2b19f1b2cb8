// Package tables decodes the lookup tables of an archive: the id table, the
// fragment table and the export table.
package tables

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// IDTable maps the 16-bit uid and gid indices stored in inodes to full ids
type IDTable struct {
	ids []uint32
}

var _ interfaces.IDTableReader = (*IDTable)(nil)

// NewIDTable creates an empty id table for a new archive
func NewIDTable() *IDTable {
	return &IDTable{}
}

// ReadIDTable reads the id table recorded in the super block
func ReadIDTable(file interfaces.FileReader, reader interfaces.MetadataBlockReader, sb *types.SuperBlock) (*IDTable, error) {
	const op = "read id table"

	if sb == nil {
		return nil, types.Errorf(op, types.KindSequenceViolation, "super block not read")
	}
	if sb.IDCount == 0 {
		return nil, types.Errorf(op, types.KindCorrupted, "archive has no ids")
	}

	raw, err := metadata.ReadTable(file, reader, sb.IDTableStart, int(sb.IDCount), types.IDEntrySize, op)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, sb.IDCount)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(raw[i*types.IDEntrySize:])
	}
	return &IDTable{ids: ids}, nil
}

// Lookup returns the id stored at index
func (t *IDTable) Lookup(index uint16) (uint32, error) {
	if int(index) >= len(t.ids) {
		return 0, types.Errorf("look up id", types.KindOutOfBounds, "index %d of %d", index, len(t.ids))
	}
	return t.ids[index], nil
}

// IndexOf returns the index of id
func (t *IDTable) IndexOf(id uint32) (uint16, error) {
	for i, v := range t.ids {
		if v == id {
			return uint16(i), nil
		}
	}
	return 0, types.Errorf("look up id index", types.KindNoEntry, "id %d", id)
}

// Add returns the index of id, appending it when it is not yet present
func (t *IDTable) Add(id uint32) (uint16, error) {
	if index, err := t.IndexOf(id); err == nil {
		return index, nil
	}
	if len(t.ids) >= types.MaxIDCount {
		return 0, types.Errorf("add id", types.KindOverflow, "id table holds %d entries", len(t.ids))
	}
	t.ids = append(t.ids, id)
	return uint16(len(t.ids) - 1), nil
}

// Size returns the number of ids
func (t *IDTable) Size() int {
	return len(t.ids)
}

// IDs returns a copy of the ids in index order
func (t *IDTable) IDs() []uint32 {
	return append([]uint32(nil), t.ids...)
}

// Write writes the table at offset and records its location in the super block.
// It returns the offset just past the table.
func (t *IDTable) Write(file interfaces.FileWriter, sb *types.SuperBlock, comp interfaces.Compressor, offset uint64) (uint64, error) {
	const op = "write id table"

	if sb == nil {
		return 0, types.Errorf(op, types.KindSequenceViolation, "super block not initialized")
	}
	if len(t.ids) == 0 {
		return 0, types.Errorf(op, types.KindInvalidArgument, "id table is empty")
	}

	w := helpers.NewFieldWriter(len(t.ids) * types.IDEntrySize)
	for _, id := range t.ids {
		w.U32(id)
	}
	start, end, err := metadata.WriteTable(file, comp, offset, w.Data(), sb.Flags.Has(types.SuperFlagUncompressedIDs), op)
	if err != nil {
		return 0, err
	}

	sb.IDTableStart = start
	sb.IDCount = uint16(len(t.ids))
	return end, nil
}
