// Package inodes decodes the fourteen inode kinds of the inode table into
// typed values.
package inodes

import (
	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Inode is a decoded inode. The concrete type is one of *DirectoryInode,
// *ExtendedDirectoryInode, *FileInode, *ExtendedFileInode, *SymlinkInode,
// *ExtendedSymlinkInode, *DeviceInode, *ExtendedDeviceInode, *IpcInode or
// *ExtendedIpcInode.
type Inode interface {
	// Type returns the tag the inode was decoded from
	Type() types.InodeType

	// Base returns the fields shared by every inode kind
	Base() *InodeBase

	inode()
}

// InodeBase holds the fields shared by every inode kind
type InodeBase struct {
	Tag              types.InodeType
	Mode             uint16
	UIDIndex         uint16
	GIDIndex         uint16
	ModificationTime uint32
	InodeNumber      uint32

	// PayloadBytesAvailable is the size of the variable length payload that
	// follows the fixed body
	PayloadBytesAvailable uint32

	// PayloadBytesUsed is the part of the payload that was decoded. For file
	// inodes it is 4 bytes per block size entry.
	PayloadBytesUsed uint32

	// Extra is the trailing word array: block sizes for file inodes and the
	// header offsets of directory index entries for extended directories
	Extra []uint32
}

func (b *InodeBase) Type() types.InodeType { return b.Tag }
func (b *InodeBase) Base() *InodeBase      { return b }
func (b *InodeBase) inode()                {}

// Permissions returns the permission bits of the mode
func (b *InodeBase) Permissions() uint16 { return b.Mode & types.ModePermMask }

// Directory is implemented by both directory inode kinds
type Directory interface {
	Inode
	StartBlock() uint32
	Offset() uint16
	// ListingSize returns the size of the directory listing in bytes
	ListingSize() uint32
	ParentInode() uint32
	LinkCount() uint32
}

// DirectoryInode is a basic directory
type DirectoryInode struct {
	InodeBase
	Body types.DirInodeT
}

func (d *DirectoryInode) StartBlock() uint32  { return d.Body.StartBlock }
func (d *DirectoryInode) Offset() uint16      { return d.Body.Offset }
func (d *DirectoryInode) ParentInode() uint32 { return d.Body.ParentInode }
func (d *DirectoryInode) LinkCount() uint32   { return d.Body.LinkCount }

func (d *DirectoryInode) ListingSize() uint32 {
	return listingSize(uint32(d.Body.FileSize))
}

// DirectoryIndex is one index entry of an extended directory
type DirectoryIndex struct {
	// Index is the byte offset of the header inside the listing
	Index uint32
	// Start is the metadata block of the header relative to the directory table start
	Start uint32
	// Name is the first name covered by the header
	Name string
}

// ExtendedDirectoryInode is a directory with an index or extended attributes
type ExtendedDirectoryInode struct {
	InodeBase
	Body  types.DirExtInodeT
	Index []DirectoryIndex
}

func (d *ExtendedDirectoryInode) StartBlock() uint32  { return d.Body.StartBlock }
func (d *ExtendedDirectoryInode) Offset() uint16      { return d.Body.Offset }
func (d *ExtendedDirectoryInode) ParentInode() uint32 { return d.Body.ParentInode }
func (d *ExtendedDirectoryInode) LinkCount() uint32   { return d.Body.LinkCount }
func (d *ExtendedDirectoryInode) XattrIndex() uint32  { return d.Body.XattrIndex }

func (d *ExtendedDirectoryInode) ListingSize() uint32 {
	return listingSize(d.Body.FileSize)
}

// DirectoryIndices returns the header offsets of the directory index. The
// index count is checked against the decoded payload.
func (d *ExtendedDirectoryInode) DirectoryIndices() ([]uint32, error) {
	count := int(d.Body.IndexCount)
	if count > len(d.Extra) {
		return nil, types.WrapError("read directory indices", types.KindCorrupted,
			&types.TruncatedError{Op: "read directory indices", Want: count * 4, Have: len(d.Extra) * 4})
	}
	return d.Extra[:count], nil
}

func listingSize(stored uint32) uint32 {
	if stored < types.DirListingOverhead {
		return 0
	}
	return stored - types.DirListingOverhead
}

// File is implemented by both file inode kinds
type File interface {
	Inode
	BlocksStart() uint64
	FileSize() uint64
	FragmentIndex() uint32
	FragmentOffset() uint32
	// BlockCount returns the number of block size entries
	BlockCount() int
	// Blocks returns a new iterator over the data blocks
	Blocks() *BlockIterator
	// HasFragment reports whether the file tail is stored in a fragment
	HasFragment() bool
}

// FileInode is a basic regular file
type FileInode struct {
	InodeBase
	Body types.FileInodeT
}

func (f *FileInode) BlocksStart() uint64    { return uint64(f.Body.BlocksStart) }
func (f *FileInode) FileSize() uint64       { return uint64(f.Body.FileSize) }
func (f *FileInode) FragmentIndex() uint32  { return f.Body.FragmentIndex }
func (f *FileInode) FragmentOffset() uint32 { return f.Body.FragmentOffset }
func (f *FileInode) BlockCount() int        { return int(f.PayloadBytesUsed / 4) }
func (f *FileInode) HasFragment() bool      { return f.Body.FragmentIndex != types.NoFragment }

func (f *FileInode) Blocks() *BlockIterator {
	return newBlockIterator(f.BlocksStart(), f.Extra[:min(f.BlockCount(), len(f.Extra))])
}

// ExtendedFileInode is a regular file with a 64-bit size, sparse accounting,
// a link count or extended attributes
type ExtendedFileInode struct {
	InodeBase
	Body types.FileExtInodeT
}

func (f *ExtendedFileInode) BlocksStart() uint64    { return f.Body.BlocksStart }
func (f *ExtendedFileInode) FileSize() uint64       { return f.Body.FileSize }
func (f *ExtendedFileInode) FragmentIndex() uint32  { return f.Body.FragmentIndex }
func (f *ExtendedFileInode) FragmentOffset() uint32 { return f.Body.FragmentOffset }
func (f *ExtendedFileInode) BlockCount() int        { return int(f.PayloadBytesUsed / 4) }
func (f *ExtendedFileInode) HasFragment() bool      { return f.Body.FragmentIndex != types.NoFragment }
func (f *ExtendedFileInode) Sparse() uint64         { return f.Body.Sparse }
func (f *ExtendedFileInode) LinkCount() uint32      { return f.Body.LinkCount }
func (f *ExtendedFileInode) XattrIndex() uint32     { return f.Body.XattrIndex }

func (f *ExtendedFileInode) Blocks() *BlockIterator {
	return newBlockIterator(f.BlocksStart(), f.Extra[:min(f.BlockCount(), len(f.Extra))])
}

// SymlinkInode is a symbolic link
type SymlinkInode struct {
	InodeBase
	LinkCount   uint32
	TargetBytes []byte
}

// Target returns the link target. Targets that are not valid UTF-8 are rejected.
func (s *SymlinkInode) Target() (string, error) {
	return helpers.ValidateUTF8(s.TargetBytes, "read symlink target")
}

// ExtendedSymlinkInode is a symbolic link with extended attributes
type ExtendedSymlinkInode struct {
	SymlinkInode
	XattrIndex uint32
}

// DeviceInode is a block or character device
type DeviceInode struct {
	InodeBase
	Body types.DevInodeT
}

// Device returns the encoded device number
func (d *DeviceInode) Device() uint32 { return d.Body.Device }
func (d *DeviceInode) Major() uint32  { return types.DeviceMajor(d.Body.Device) }
func (d *DeviceInode) Minor() uint32  { return types.DeviceMinor(d.Body.Device) }

// IsBlockDevice distinguishes block devices from character devices
func (d *DeviceInode) IsBlockDevice() bool {
	return d.Tag.Basic() == types.InodeTypeBlockDevice
}

// ExtendedDeviceInode is a device with extended attributes
type ExtendedDeviceInode struct {
	DeviceInode
	XattrIndex uint32
}

// IpcInode is a named pipe or a socket
type IpcInode struct {
	InodeBase
	LinkCount uint32
}

// IsSocket distinguishes sockets from named pipes
func (i *IpcInode) IsSocket() bool {
	return i.Tag.Basic() == types.InodeTypeSocket
}

// ExtendedIpcInode is a named pipe or socket with extended attributes
type ExtendedIpcInode struct {
	IpcInode
	XattrIndex uint32
}

// AsDirectory returns the inode as a Directory, or nil
func AsDirectory(inode Inode) Directory {
	d, _ := inode.(Directory)
	return d
}

// AsFile returns the inode as a File, or nil
func AsFile(inode Inode) File {
	f, _ := inode.(File)
	return f
}

// AsSymlink returns the symbolic link part of either symlink kind, or nil
func AsSymlink(inode Inode) *SymlinkInode {
	switch s := inode.(type) {
	case *SymlinkInode:
		return s
	case *ExtendedSymlinkInode:
		return &s.SymlinkInode
	default:
		return nil
	}
}
