package metadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// TableBlockCount returns the number of metadata blocks holding count entries
// of entrySize bytes
func TableBlockCount(count, entrySize int) int {
	return (count*entrySize + types.MetadataBlockSize - 1) / types.MetadataBlockSize
}

// ReadTable reads a lookup table. locationsStart points at the list of 64-bit
// block locations; the entries are the concatenated contents of those blocks.
func ReadTable(file interfaces.FileReader, reader interfaces.MetadataBlockReader, locationsStart uint64, count, entrySize int, op string) ([]byte, error) {
	if count < 0 || entrySize <= 0 {
		return nil, types.Errorf(op, types.KindInvalidArgument, "count %d entry size %d", count, entrySize)
	}
	if count == 0 {
		return []byte{}, nil
	}
	if locationsStart == types.TableAbsent {
		return nil, types.Errorf(op, types.KindCorrupted, "table of %d entries has no location", count)
	}

	blocks := TableBlockCount(count, entrySize)
	raw, err := helpers.ReadExact(file, locationsStart, blocks*8, op)
	if err != nil {
		return nil, types.WrapError(op, types.KindCorrupted, err)
	}

	want := count * entrySize
	out := make([]byte, 0, want)
	for i := 0; i < blocks; i++ {
		location := binary.LittleEndian.Uint64(raw[i*8:])
		data, _, err := reader.ReadBlock(location)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	if len(out) < want {
		return nil, types.WrapError(op, types.KindCorrupted, &types.TruncatedError{Op: op, Want: want, Have: len(out)})
	}
	return out[:want], nil
}

// WriteTable writes entries as metadata blocks at offset followed by the list
// of block locations. It returns the location list start, to be stored in the
// super block, and the offset just past the table.
func WriteTable(file interfaces.FileWriter, comp interfaces.Compressor, offset uint64, entries []byte, uncompressed bool, op string) (uint64, uint64, error) {
	var locations []uint64
	pos := offset
	for start := 0; start < len(entries); start += types.MetadataBlockSize {
		end := min(start+types.MetadataBlockSize, len(entries))
		block, err := EncodeBlock(comp, entries[start:end], uncompressed)
		if err != nil {
			return 0, 0, err
		}
		if err := helpers.WriteExact(file, pos, block, op); err != nil {
			return 0, 0, err
		}
		locations = append(locations, pos)
		pos += uint64(len(block))
	}

	w := helpers.NewFieldWriter(len(locations) * 8)
	for _, location := range locations {
		w.U64(location)
	}
	if err := helpers.WriteExact(file, pos, w.Data(), op); err != nil {
		return 0, 0, err
	}
	return pos, pos + uint64(len(w.Data())), nil
}
