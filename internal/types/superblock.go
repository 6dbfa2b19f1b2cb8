// Package types implements the on-disk data structures of the SquashFS 4.0 format.
// All multi-byte fields are stored little endian.
package types

import (
	"fmt"
	"strings"
)

// Super Block
// The super block is the first structure in the archive. It records the global
// parameters of the image and the start offsets of every table.

const (
	// SuperBlockSize is the size in bytes of the on-disk super block.
	SuperBlockSize = 96

	// SuperBlockMagic is the magic number of a SquashFS archive ("hsqs" on disk).
	SuperBlockMagic uint32 = 0x73717368

	// SupportedVersionMajor is the only supported major format version.
	SupportedVersionMajor uint16 = 4

	// SupportedVersionMinor is the only supported minor format version.
	SupportedVersionMinor uint16 = 0

	// MinBlockSize is the smallest allowed data block size.
	MinBlockSize uint32 = 4096

	// MaxBlockSize is the largest allowed data block size.
	MaxBlockSize uint32 = 1 << 20

	// DefaultBlockSize is the block size used when none is given.
	DefaultBlockSize uint32 = 128 * 1024

	// MetadataBlockSize is the uncompressed size of a full metadata block.
	MetadataBlockSize = 8192

	// TableAbsent marks a table offset that is not present in the archive.
	TableAbsent uint64 = 0xFFFFFFFFFFFFFFFF

	// DeviceBlockSize is the alignment the archive is padded to by the reference tooling.
	DeviceBlockSize = 4096
)

// SuperBlock is the archive header stored at offset 0.
type SuperBlock struct {
	// The magic number identifying the archive. Always SuperBlockMagic.
	Magic uint32

	// The number of inodes stored in the inode table.
	InodeCount uint32

	// The last modification time of the archive, in seconds since the epoch.
	ModificationTime uint32

	// The size of a data block in bytes. Must equal 1 << BlockLog.
	BlockSize uint32

	// The number of entries in the fragment table.
	FragmentEntryCount uint32

	// The compressor used for data and metadata. See CompressionAlgorithm.
	CompressionID uint16

	// The base two logarithm of BlockSize.
	BlockLog uint16

	// Super block flags. Unknown bits are preserved.
	Flags SuperBlockFlags

	// The number of entries in the id table.
	IDCount uint16

	// The major format version. Always 4.
	VersionMajor uint16

	// The minor format version. Always 0.
	VersionMinor uint16

	// A reference to the root directory inode. See InodeRef.
	RootInodeRef uint64

	// The number of bytes used by the archive. The file may be padded past this.
	BytesUsed uint64

	// The byte offset of the id table location list.
	IDTableStart uint64

	// The byte offset of the extended attribute id table, or TableAbsent.
	XattrIDTableStart uint64

	// The byte offset of the inode table.
	InodeTableStart uint64

	// The byte offset of the directory table.
	DirectoryTableStart uint64

	// The byte offset of the fragment table location list, or TableAbsent.
	FragmentTableStart uint64

	// The byte offset of the export table location list, or TableAbsent.
	ExportTableStart uint64
}

// Compression returns the compression algorithm recorded in the super block.
func (sb *SuperBlock) Compression() CompressionAlgorithm {
	return CompressionAlgorithm(sb.CompressionID)
}

// HasFragmentTable reports whether the archive contains a fragment table.
func (sb *SuperBlock) HasFragmentTable() bool {
	return sb.FragmentEntryCount > 0 && sb.FragmentTableStart != TableAbsent
}

// HasExportTable reports whether the archive contains an export table.
func (sb *SuperBlock) HasExportTable() bool {
	return sb.Flags.Has(SuperFlagExportable) && sb.ExportTableStart != TableAbsent
}

// HasXattrTable reports whether the archive contains an extended attribute table.
func (sb *SuperBlock) HasXattrTable() bool {
	return !sb.Flags.Has(SuperFlagNoXattrs) && sb.XattrIDTableStart != TableAbsent
}

// SuperBlockFlags is the flag set stored in the super block.
type SuperBlockFlags uint16

const (
	// SuperFlagUncompressedInodes marks inodes as stored uncompressed.
	SuperFlagUncompressedInodes SuperBlockFlags = 0x0001

	// SuperFlagUncompressedData marks data blocks as stored uncompressed.
	SuperFlagUncompressedData SuperBlockFlags = 0x0002

	// SuperFlagCheck is unused since format 4.0.
	SuperFlagCheck SuperBlockFlags = 0x0004

	// SuperFlagUncompressedFragments marks fragments as stored uncompressed.
	SuperFlagUncompressedFragments SuperBlockFlags = 0x0008

	// SuperFlagNoFragments marks an archive without fragments.
	SuperFlagNoFragments SuperBlockFlags = 0x0010

	// SuperFlagAlwaysFragments marks an archive where every tail is packed into a fragment.
	SuperFlagAlwaysFragments SuperBlockFlags = 0x0020

	// SuperFlagDuplicates marks an archive with deduplicated files.
	SuperFlagDuplicates SuperBlockFlags = 0x0040

	// SuperFlagExportable marks an archive with an export table.
	SuperFlagExportable SuperBlockFlags = 0x0080

	// SuperFlagUncompressedXattrs marks extended attributes as stored uncompressed.
	SuperFlagUncompressedXattrs SuperBlockFlags = 0x0100

	// SuperFlagNoXattrs marks an archive without extended attributes.
	SuperFlagNoXattrs SuperBlockFlags = 0x0200

	// SuperFlagCompressorOptions marks the presence of a compressor options block.
	SuperFlagCompressorOptions SuperBlockFlags = 0x0400

	// SuperFlagUncompressedIDs marks the id table as stored uncompressed.
	SuperFlagUncompressedIDs SuperBlockFlags = 0x0800

	// SuperFlagsKnown is the union of every defined flag.
	SuperFlagsKnown SuperBlockFlags = 0x0FFF
)

var superFlagNames = []struct {
	flag SuperBlockFlags
	name string
}{
	{SuperFlagUncompressedInodes, "uncompressed-inodes"},
	{SuperFlagUncompressedData, "uncompressed-data"},
	{SuperFlagCheck, "check"},
	{SuperFlagUncompressedFragments, "uncompressed-fragments"},
	{SuperFlagNoFragments, "no-fragments"},
	{SuperFlagAlwaysFragments, "always-fragments"},
	{SuperFlagDuplicates, "duplicates"},
	{SuperFlagExportable, "exportable"},
	{SuperFlagUncompressedXattrs, "uncompressed-xattrs"},
	{SuperFlagNoXattrs, "no-xattrs"},
	{SuperFlagCompressorOptions, "compressor-options"},
	{SuperFlagUncompressedIDs, "uncompressed-ids"},
}

// Has reports whether every bit of flag is set.
func (f SuperBlockFlags) Has(flag SuperBlockFlags) bool {
	return f&flag == flag
}

// With returns the union of f and flag.
func (f SuperBlockFlags) With(flag SuperBlockFlags) SuperBlockFlags {
	return f | flag
}

// Unknown returns the bits that are not defined by the format.
func (f SuperBlockFlags) Unknown() SuperBlockFlags {
	return f &^ SuperFlagsKnown
}

// Names returns the names of the set flags in bit order.
func (f SuperBlockFlags) Names() []string {
	var names []string
	for _, entry := range superFlagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	if unknown := f.Unknown(); unknown != 0 {
		names = append(names, fmt.Sprintf("unknown(0x%04x)", uint16(unknown)))
	}
	return names
}

func (f SuperBlockFlags) String() string {
	names := f.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
