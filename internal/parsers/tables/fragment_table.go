package tables

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// FragmentTable lists the fragment blocks that hold packed file tails
type FragmentTable struct {
	fragments []types.Fragment
}

var _ interfaces.FragmentTableReader = (*FragmentTable)(nil)

// NewFragmentTable creates an empty fragment table for a new archive
func NewFragmentTable() *FragmentTable {
	return &FragmentTable{}
}

// ReadFragmentTable reads the fragment table recorded in the super block. An
// archive without fragments yields an empty table.
func ReadFragmentTable(file interfaces.FileReader, reader interfaces.MetadataBlockReader, sb *types.SuperBlock) (*FragmentTable, error) {
	const op = "read fragment table"

	if sb == nil {
		return nil, types.Errorf(op, types.KindSequenceViolation, "super block not read")
	}
	if !sb.HasFragmentTable() {
		return NewFragmentTable(), nil
	}

	count := int(sb.FragmentEntryCount)
	raw, err := metadata.ReadTable(file, reader, sb.FragmentTableStart, count, types.FragmentEntrySize, op)
	if err != nil {
		return nil, err
	}

	fragments := make([]types.Fragment, count)
	for i := range fragments {
		entry := raw[i*types.FragmentEntrySize:]
		fragments[i] = types.Fragment{
			StartOffset: binary.LittleEndian.Uint64(entry[0:8]),
			RawSize:     binary.LittleEndian.Uint32(entry[8:12]),
			Pad:         binary.LittleEndian.Uint32(entry[12:16]),
		}
	}
	return &FragmentTable{fragments: fragments}, nil
}

// Lookup returns the fragment at index
func (t *FragmentTable) Lookup(index uint32) (types.Fragment, error) {
	if uint64(index) >= uint64(len(t.fragments)) {
		return types.Fragment{}, types.Errorf("look up fragment", types.KindOutOfBounds, "index %d of %d", index, len(t.fragments))
	}
	return t.fragments[index], nil
}

// Size returns the number of fragments
func (t *FragmentTable) Size() int {
	return len(t.fragments)
}

// Fragments returns an iterator positioned before the first fragment. Every
// call starts a new pass from index 0.
func (t *FragmentTable) Fragments() *FragmentIterator {
	return &FragmentIterator{fragments: t.fragments, index: -1}
}

// Append adds a fragment and returns its index
func (t *FragmentTable) Append(f types.Fragment) (uint32, error) {
	if uint64(len(t.fragments)) >= uint64(types.NoFragment) {
		return 0, types.Errorf("append fragment", types.KindOverflow, "fragment table holds %d entries", len(t.fragments))
	}
	t.fragments = append(t.fragments, f)
	return uint32(len(t.fragments) - 1), nil
}

// Set replaces the fragment at index
func (t *FragmentTable) Set(index uint32, f types.Fragment) error {
	if uint64(index) >= uint64(len(t.fragments)) {
		return types.Errorf("set fragment", types.KindOutOfBounds, "index %d of %d", index, len(t.fragments))
	}
	t.fragments[index] = f
	return nil
}

// Write writes the table at offset and records its location in the super block.
// It returns the offset just past the table.
func (t *FragmentTable) Write(file interfaces.FileWriter, sb *types.SuperBlock, comp interfaces.Compressor, offset uint64) (uint64, error) {
	const op = "write fragment table"

	if sb == nil {
		return 0, types.Errorf(op, types.KindSequenceViolation, "super block not initialized")
	}
	if len(t.fragments) == 0 {
		sb.FragmentTableStart = types.TableAbsent
		sb.FragmentEntryCount = 0
		return offset, nil
	}

	w := helpers.NewFieldWriter(len(t.fragments) * types.FragmentEntrySize)
	for _, f := range t.fragments {
		w.U64(f.StartOffset).U32(f.RawSize).U32(0)
	}
	start, end, err := metadata.WriteTable(file, comp, offset, w.Data(), false, op)
	if err != nil {
		return 0, err
	}

	sb.FragmentTableStart = start
	sb.FragmentEntryCount = uint32(len(t.fragments))
	return end, nil
}

// FragmentIterator walks a fragment table in index order
type FragmentIterator struct {
	fragments []types.Fragment
	index     int
}

// Next advances to the next fragment and reports whether one exists
func (it *FragmentIterator) Next() bool {
	if it.index+1 >= len(it.fragments) {
		it.index = len(it.fragments)
		return false
	}
	it.index++
	return true
}

// Value returns the current fragment
func (it *FragmentIterator) Value() types.Fragment {
	return it.fragments[it.index]
}

// Index returns the index of the current fragment
func (it *FragmentIterator) Index() uint32 {
	return uint32(it.index)
}

// Len returns the number of fragments not yet visited
func (it *FragmentIterator) Len() int {
	return max(len(it.fragments)-it.index-1, 0)
}

// ReadFragmentBlock reads a fragment block and decompresses it when required
func ReadFragmentBlock(file interfaces.FileReader, comp interfaces.Compressor, f types.Fragment, blockSize uint32) ([]byte, error) {
	const op = "read fragment block"

	if f.IsSparse() {
		return nil, types.Errorf(op, types.KindCorrupted, "fragment block at %d has size 0", f.StartOffset)
	}
	if f.OnDiskSize() > blockSize {
		return nil, types.Errorf(op, types.KindCorrupted, "fragment block of %d bytes exceeds block size %d", f.OnDiskSize(), blockSize)
	}

	data, err := helpers.ReadExact(file, f.StartOffset, int(f.OnDiskSize()), op)
	if err != nil {
		return nil, types.WrapError(op, types.KindCorrupted, err)
	}
	if !f.Compressed() {
		return data, nil
	}
	return comp.Decompress(data)
}
