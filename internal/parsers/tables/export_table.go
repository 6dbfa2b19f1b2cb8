package tables

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// ExportTable maps inode numbers to inode references. Inode numbers start at 1.
type ExportTable struct {
	refs []types.InodeRef
}

var _ interfaces.ExportTableReader = (*ExportTable)(nil)

// NewExportTable creates an export table from references ordered by inode number
func NewExportTable(refs []types.InodeRef) *ExportTable {
	return &ExportTable{refs: append([]types.InodeRef(nil), refs...)}
}

// ReadExportTable reads the export table of an exportable archive
func ReadExportTable(file interfaces.FileReader, reader interfaces.MetadataBlockReader, sb *types.SuperBlock) (*ExportTable, error) {
	const op = "read export table"

	if sb == nil {
		return nil, types.Errorf(op, types.KindSequenceViolation, "super block not read")
	}
	if !sb.HasExportTable() {
		return nil, types.Errorf(op, types.KindUnsupported, "archive is not exportable")
	}

	count := int(sb.InodeCount)
	raw, err := metadata.ReadTable(file, reader, sb.ExportTableStart, count, types.ExportEntrySize, op)
	if err != nil {
		return nil, err
	}

	refs := make([]types.InodeRef, count)
	for i := range refs {
		refs[i] = types.InodeRef(binary.LittleEndian.Uint64(raw[i*types.ExportEntrySize:]))
	}
	return &ExportTable{refs: refs}, nil
}

// Lookup returns the reference of an inode number
func (t *ExportTable) Lookup(inodeNumber uint32) (types.InodeRef, error) {
	if inodeNumber == 0 || uint64(inodeNumber) > uint64(len(t.refs)) {
		return 0, types.Errorf("look up export entry", types.KindOutOfBounds, "inode %d of %d", inodeNumber, len(t.refs))
	}
	return t.refs[inodeNumber-1], nil
}

// Size returns the number of inodes in the table
func (t *ExportTable) Size() int {
	return len(t.refs)
}

// Write writes the table at offset, marks the archive exportable and records
// the table location in the super block. It returns the offset just past the table.
func (t *ExportTable) Write(file interfaces.FileWriter, sb *types.SuperBlock, comp interfaces.Compressor, offset uint64) (uint64, error) {
	const op = "write export table"

	if sb == nil {
		return 0, types.Errorf(op, types.KindSequenceViolation, "super block not initialized")
	}
	if len(t.refs) != int(sb.InodeCount) {
		return 0, types.Errorf(op, types.KindInvalidArgument, "%d entries for %d inodes", len(t.refs), sb.InodeCount)
	}

	w := helpers.NewFieldWriter(len(t.refs) * types.ExportEntrySize)
	for _, ref := range t.refs {
		w.U64(uint64(ref))
	}
	start, end, err := metadata.WriteTable(file, comp, offset, w.Data(), false, op)
	if err != nil {
		return 0, err
	}

	sb.ExportTableStart = start
	sb.Flags = sb.Flags.With(types.SuperFlagExportable)
	return end, nil
}
