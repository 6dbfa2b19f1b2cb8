package types

import "fmt"

// Inodes
// Every object in the archive is described by an inode stored in the inode table.
// An inode starts with a common header followed by a type specific body.

// InodeType is the 16-bit tag at the start of every inode.
type InodeType uint16

const (
	InodeTypeDirectory    InodeType = 1
	InodeTypeFile         InodeType = 2
	InodeTypeSymlink      InodeType = 3
	InodeTypeBlockDevice  InodeType = 4
	InodeTypeCharDevice   InodeType = 5
	InodeTypeFifo         InodeType = 6
	InodeTypeSocket       InodeType = 7
	InodeTypeExtDirectory InodeType = 8
	InodeTypeExtFile      InodeType = 9
	InodeTypeExtSymlink   InodeType = 10
	InodeTypeExtBlockDev  InodeType = 11
	InodeTypeExtCharDev   InodeType = 12
	InodeTypeExtFifo      InodeType = 13
	InodeTypeExtSocket    InodeType = 14
)

var inodeTypeNames = [...]string{
	InodeTypeDirectory:    "directory",
	InodeTypeFile:         "file",
	InodeTypeSymlink:      "symlink",
	InodeTypeBlockDevice:  "block-device",
	InodeTypeCharDevice:   "char-device",
	InodeTypeFifo:         "fifo",
	InodeTypeSocket:       "socket",
	InodeTypeExtDirectory: "ext-directory",
	InodeTypeExtFile:      "ext-file",
	InodeTypeExtSymlink:   "ext-symlink",
	InodeTypeExtBlockDev:  "ext-block-device",
	InodeTypeExtCharDev:   "ext-char-device",
	InodeTypeExtFifo:      "ext-fifo",
	InodeTypeExtSocket:    "ext-socket",
}

func (t InodeType) String() string {
	if t.Valid() {
		return inodeTypeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// Valid reports whether t is one of the fourteen defined tags.
func (t InodeType) Valid() bool {
	return t >= InodeTypeDirectory && t <= InodeTypeExtSocket
}

// IsExtended reports whether t is an extended inode tag.
func (t InodeType) IsExtended() bool {
	return t >= InodeTypeExtDirectory && t <= InodeTypeExtSocket
}

// Basic returns the base tag for an extended tag, and t otherwise.
func (t InodeType) Basic() InodeType {
	if t.IsExtended() {
		return t - 7
	}
	return t
}

// Extended returns the extended tag for a base tag, and t otherwise.
func (t InodeType) Extended() InodeType {
	if t.Valid() && !t.IsExtended() {
		return t + 7
	}
	return t
}

// IsDirectory reports whether t tags a directory.
func (t InodeType) IsDirectory() bool { return t.Basic() == InodeTypeDirectory }

// IsFile reports whether t tags a regular file.
func (t InodeType) IsFile() bool { return t.Basic() == InodeTypeFile }

// IsSymlink reports whether t tags a symbolic link.
func (t InodeType) IsSymlink() bool { return t.Basic() == InodeTypeSymlink }

// IsDevice reports whether t tags a block or character device.
func (t InodeType) IsDevice() bool {
	b := t.Basic()
	return b == InodeTypeBlockDevice || b == InodeTypeCharDevice
}

// IsIpc reports whether t tags a fifo or a socket.
func (t InodeType) IsIpc() bool {
	b := t.Basic()
	return b == InodeTypeFifo || b == InodeTypeSocket
}

// Mode bits
// The mode field holds the permission bits and a file type in the POSIX layout.

const (
	ModeTypeMask  uint16 = 0o170000
	ModeSocket    uint16 = 0o140000
	ModeSymlink   uint16 = 0o120000
	ModeRegular   uint16 = 0o100000
	ModeBlockDev  uint16 = 0o060000
	ModeDirectory uint16 = 0o040000
	ModeCharDev   uint16 = 0o020000
	ModeFifo      uint16 = 0o010000
	ModePermMask  uint16 = 0o007777
)

// ModeTypeFor returns the mode file type bits that match an inode tag.
func ModeTypeFor(t InodeType) uint16 {
	switch t.Basic() {
	case InodeTypeDirectory:
		return ModeDirectory
	case InodeTypeFile:
		return ModeRegular
	case InodeTypeSymlink:
		return ModeSymlink
	case InodeTypeBlockDevice:
		return ModeBlockDev
	case InodeTypeCharDevice:
		return ModeCharDev
	case InodeTypeFifo:
		return ModeFifo
	case InodeTypeSocket:
		return ModeSocket
	default:
		return 0
	}
}

// InodeRef packs the location of an inode. The upper 48 bits hold the offset of
// the metadata block relative to the inode table start; the low 16 bits hold the
// offset inside the uncompressed block.
type InodeRef uint64

// NewInodeRef builds a reference from a block offset and an in-block offset.
func NewInodeRef(block uint64, offset uint16) InodeRef {
	return InodeRef(block<<16 | uint64(offset))
}

// Block returns the metadata block offset relative to the table start.
func (r InodeRef) Block() uint64 { return uint64(r) >> 16 }

// Offset returns the byte offset within the uncompressed metadata block.
func (r InodeRef) Offset() uint16 { return uint16(r) }

func (r InodeRef) String() string {
	return fmt.Sprintf("%d:%d", r.Block(), r.Offset())
}

const (
	// InodeHeaderSize is the size of the common inode header.
	InodeHeaderSize = 16

	// LinkMax is the longest chain of symbolic links followed during lookup.
	LinkMax = 1000
)

// InodeHeaderT is the header shared by every inode.
type InodeHeaderT struct {
	// The inode type tag.
	Type InodeType
	// The permission and file type bits.
	Mode uint16
	// The index of the owner uid in the id table.
	UIDIndex uint16
	// The index of the owner gid in the id table.
	GIDIndex uint16
	// The modification time in seconds since the epoch.
	ModificationTime uint32
	// The unique inode number, starting at 1.
	InodeNumber uint32
}

// DirInodeT is the body of a basic directory inode.
type DirInodeT struct {
	// The metadata block offset of the listing, relative to the directory table start.
	StartBlock uint32
	// The number of hard links, 2 plus the number of subdirectories.
	LinkCount uint32
	// The listing size in bytes plus 3 for the implicit "." and ".." entries.
	FileSize uint16
	// The byte offset of the listing inside the uncompressed metadata block.
	Offset uint16
	// The inode number of the parent directory.
	ParentInode uint32
}

// DirInodeSize is the encoded size of DirInodeT.
const DirInodeSize = 16

// DirExtInodeT is the body of an extended directory inode.
type DirExtInodeT struct {
	LinkCount   uint32
	FileSize    uint32
	StartBlock  uint32
	ParentInode uint32
	// The number of directory index entries that follow the body.
	IndexCount uint16
	Offset     uint16
	// The index into the xattr id table, or NoXattr.
	XattrIndex uint32
}

// DirExtInodeSize is the encoded size of DirExtInodeT.
const DirExtInodeSize = 24

// DirIndexT is one directory index entry of an extended directory. Indices allow
// a lookup to skip straight to the header covering a name.
type DirIndexT struct {
	// The byte offset of the header inside the listing.
	Index uint32
	// The metadata block of the header relative to the directory table start.
	Start uint32
	// The length of Name minus one.
	NameSize uint32
}

// DirIndexSize is the encoded size of DirIndexT without its name.
const DirIndexSize = 12

// FileInodeT is the body of a basic file inode. It is followed by one 32-bit size
// field per data block.
type FileInodeT struct {
	// The absolute byte offset of the first data block.
	BlocksStart uint32
	// The fragment table index of the tail, or NoFragment.
	FragmentIndex uint32
	// The byte offset of the tail inside the uncompressed fragment block.
	FragmentOffset uint32
	// The uncompressed file size in bytes.
	FileSize uint32
}

// FileInodeSize is the encoded size of FileInodeT.
const FileInodeSize = 16

// FileExtInodeT is the body of an extended file inode.
type FileExtInodeT struct {
	BlocksStart uint64
	FileSize    uint64
	// The number of bytes saved by omitting zero blocks.
	Sparse         uint64
	LinkCount      uint32
	FragmentIndex  uint32
	FragmentOffset uint32
	XattrIndex     uint32
}

// FileExtInodeSize is the encoded size of FileExtInodeT.
const FileExtInodeSize = 40

// SymlinkInodeT is the body of a symbolic link inode. It is followed by
// TargetSize bytes of target path. The extended form adds an xattr index after the target.
type SymlinkInodeT struct {
	LinkCount  uint32
	TargetSize uint32
}

// SymlinkInodeSize is the encoded size of SymlinkInodeT without its target.
const SymlinkInodeSize = 8

// DevInodeT is the body of a block or character device inode.
type DevInodeT struct {
	LinkCount uint32
	// The device number. See DeviceMajor and DeviceMinor.
	Device uint32
}

// DevInodeSize is the encoded size of DevInodeT.
const DevInodeSize = 8

// IpcInodeT is the body of a fifo or socket inode.
type IpcInodeT struct {
	LinkCount uint32
}

// IpcInodeSize is the encoded size of IpcInodeT.
const IpcInodeSize = 4

// NoXattr is the xattr index of an inode without extended attributes.
const NoXattr uint32 = 0xFFFFFFFF

// DeviceMajor extracts the major number from an encoded device number.
func DeviceMajor(dev uint32) uint32 {
	return (dev & 0xFFF00) >> 8
}

// DeviceMinor extracts the minor number from an encoded device number.
func DeviceMinor(dev uint32) uint32 {
	return (dev & 0xFF) | ((dev >> 12) & 0xFFF00)
}

// MakeDevice encodes a major and minor number.
func MakeDevice(major, minor uint32) uint32 {
	return (minor & 0xFF) | ((major & 0xFFF) << 8) | ((minor &^ 0xFF) << 12)
}
