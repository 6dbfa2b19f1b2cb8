package superblock

import (
	"encoding/binary"
	"math/bits"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Read reads and validates the super block at offset 0. No super block is
// returned when validation fails.
func Read(file interfaces.FileReader) (*types.SuperBlock, error) {
	const op = "read super block"

	data, err := helpers.ReadExact(file, 0, types.SuperBlockSize, op)
	if err != nil {
		return nil, types.WrapError(op, types.KindIo, err)
	}

	sb, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return sb, nil
}

// Decode parses and validates a 96 byte super block
func Decode(data []byte) (*types.SuperBlock, error) {
	const op = "decode super block"

	if len(data) < types.SuperBlockSize {
		return nil, types.WrapError(op, types.KindCorrupted,
			&types.TruncatedError{Op: op, Want: types.SuperBlockSize, Have: len(data)})
	}

	sb := parseSuperBlock(data, binary.LittleEndian)
	if err := Validate(sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// parseSuperBlock parses raw bytes into a SuperBlock without validation
func parseSuperBlock(data []byte, endian binary.ByteOrder) *types.SuperBlock {
	return &types.SuperBlock{
		Magic:               endian.Uint32(data[0:4]),
		InodeCount:          endian.Uint32(data[4:8]),
		ModificationTime:    endian.Uint32(data[8:12]),
		BlockSize:           endian.Uint32(data[12:16]),
		FragmentEntryCount:  endian.Uint32(data[16:20]),
		CompressionID:       endian.Uint16(data[20:22]),
		BlockLog:            endian.Uint16(data[22:24]),
		Flags:               types.SuperBlockFlags(endian.Uint16(data[24:26])),
		IDCount:             endian.Uint16(data[26:28]),
		VersionMajor:        endian.Uint16(data[28:30]),
		VersionMinor:        endian.Uint16(data[30:32]),
		RootInodeRef:        endian.Uint64(data[32:40]),
		BytesUsed:           endian.Uint64(data[40:48]),
		IDTableStart:        endian.Uint64(data[48:56]),
		XattrIDTableStart:   endian.Uint64(data[56:64]),
		InodeTableStart:     endian.Uint64(data[64:72]),
		DirectoryTableStart: endian.Uint64(data[72:80]),
		FragmentTableStart:  endian.Uint64(data[80:88]),
		ExportTableStart:    endian.Uint64(data[88:96]),
	}
}

// Validate checks the magic number, the version and the block size
func Validate(sb *types.SuperBlock) error {
	const op = "validate super block"

	if sb.Magic != types.SuperBlockMagic {
		return types.Errorf(op, types.KindSuperMagicMismatch, "got 0x%08X, want 0x%08X", sb.Magic, types.SuperBlockMagic)
	}
	if sb.VersionMajor != types.SupportedVersionMajor || sb.VersionMinor != types.SupportedVersionMinor {
		return types.Errorf(op, types.KindSuperVersionMismatch, "version %d.%d", sb.VersionMajor, sb.VersionMinor)
	}
	if err := ValidateBlockSize(sb.BlockSize, sb.BlockLog); err != nil {
		return err
	}
	return nil
}

// ValidateBlockSize checks that size is a power of two in range and equals 1 << log
func ValidateBlockSize(size uint32, log uint16) error {
	const op = "validate block size"

	if size < types.MinBlockSize || size > types.MaxBlockSize || bits.OnesCount32(size) != 1 {
		return types.Errorf(op, types.KindSuperBlockSizeInvalid, "block size %d", size)
	}
	if log >= 32 || uint32(1)<<log != size {
		return types.Errorf(op, types.KindSuperBlockSizeInvalid, "block size %d does not match block log %d", size, log)
	}
	return nil
}

// Encode serializes a super block into its 96 byte form
func Encode(sb *types.SuperBlock) []byte {
	endian := binary.LittleEndian
	data := make([]byte, types.SuperBlockSize)

	endian.PutUint32(data[0:4], sb.Magic)
	endian.PutUint32(data[4:8], sb.InodeCount)
	endian.PutUint32(data[8:12], sb.ModificationTime)
	endian.PutUint32(data[12:16], sb.BlockSize)
	endian.PutUint32(data[16:20], sb.FragmentEntryCount)
	endian.PutUint16(data[20:22], sb.CompressionID)
	endian.PutUint16(data[22:24], sb.BlockLog)
	endian.PutUint16(data[24:26], uint16(sb.Flags))
	endian.PutUint16(data[26:28], sb.IDCount)
	endian.PutUint16(data[28:30], sb.VersionMajor)
	endian.PutUint16(data[30:32], sb.VersionMinor)
	endian.PutUint64(data[32:40], sb.RootInodeRef)
	endian.PutUint64(data[40:48], sb.BytesUsed)
	endian.PutUint64(data[48:56], sb.IDTableStart)
	endian.PutUint64(data[56:64], sb.XattrIDTableStart)
	endian.PutUint64(data[64:72], sb.InodeTableStart)
	endian.PutUint64(data[72:80], sb.DirectoryTableStart)
	endian.PutUint64(data[80:88], sb.FragmentTableStart)
	endian.PutUint64(data[88:96], sb.ExportTableStart)

	return data
}

// Write serializes the super block back to offset 0
func Write(sb *types.SuperBlock, file interfaces.FileWriter) error {
	return helpers.WriteExact(file, 0, Encode(sb), "write super block")
}

// New initializes a super block for an empty archive. Every table offset is
// marked absent until the writer fills it in.
func New(blockSize uint32, compression types.CompressionAlgorithm, modTime uint32) (*types.SuperBlock, error) {
	const op = "initialize super block"

	if !compression.Valid() {
		return nil, types.Errorf(op, types.KindUnsupported, "compression algorithm %s", compression)
	}
	log := uint16(bits.TrailingZeros32(blockSize))
	if err := ValidateBlockSize(blockSize, log); err != nil {
		return nil, err
	}

	return &types.SuperBlock{
		Magic:               types.SuperBlockMagic,
		ModificationTime:    modTime,
		BlockSize:           blockSize,
		CompressionID:       uint16(compression),
		BlockLog:            log,
		Flags:               types.SuperFlagNoXattrs,
		VersionMajor:        types.SupportedVersionMajor,
		VersionMinor:        types.SupportedVersionMinor,
		BytesUsed:           types.SuperBlockSize,
		IDTableStart:        types.TableAbsent,
		XattrIDTableStart:   types.TableAbsent,
		InodeTableStart:     types.TableAbsent,
		DirectoryTableStart: types.TableAbsent,
		FragmentTableStart:  types.TableAbsent,
		ExportTableStart:    types.TableAbsent,
	}, nil
}
