package types

import (
	"fmt"
	"strings"
)

// Directory Table
// A directory listing is a sequence of runs. Each run starts with a header that
// names the inode table block shared by the entries of the run.

const (
	// DirHeaderSize is the encoded size of DirHeaderT.
	DirHeaderSize = 12

	// DirEntrySize is the encoded size of DirEntryT without its name.
	DirEntrySize = 8

	// DirMaxEntriesPerHeader is the largest number of entries in one run.
	DirMaxEntriesPerHeader = 256

	// DirListingOverhead is added to the listing size stored in a directory inode.
	DirListingOverhead = 3

	// MaxNameLength is the longest entry name.
	MaxNameLength = 256
)

// DirHeaderT starts a run of directory entries.
type DirHeaderT struct {
	// The number of entries in the run minus one.
	Count uint32
	// The metadata block of the entries' inodes relative to the inode table start.
	StartBlock uint32
	// The base inode number the entries' inode numbers are relative to.
	InodeNumber uint32
}

// DirEntryT is one entry of a directory run. It is followed by NameSize+1 bytes of name.
type DirEntryT struct {
	// The byte offset of the inode inside its uncompressed metadata block.
	Offset uint16
	// The signed difference between this inode number and the header's.
	InodeOffset int16
	// The basic inode type of the entry. Extended types are never stored here.
	Type InodeType
	// The length of the name minus one.
	NameSize uint16
}

// DirReaderFlags configure a directory reader.
type DirReaderFlags uint32

const (
	// DirReaderDotEntries makes listings start with "." and ".." entries.
	DirReaderDotEntries DirReaderFlags = 0x1

	// DirReaderFlagsKnown is the union of every defined flag.
	DirReaderFlagsKnown DirReaderFlags = DirReaderDotEntries
)

// Has reports whether every bit of flag is set.
func (f DirReaderFlags) Has(flag DirReaderFlags) bool { return f&flag == flag }

// With returns the union of f and flag.
func (f DirReaderFlags) With(flag DirReaderFlags) DirReaderFlags { return f | flag }

// Validate rejects unknown bits.
func (f DirReaderFlags) Validate() error {
	if unknown := f &^ DirReaderFlagsKnown; unknown != 0 {
		return Errorf("validate directory reader flags", KindInvalidArgument, "unknown bits 0x%x", uint32(unknown))
	}
	return nil
}

// TreeFilterFlags select which nodes a hierarchy contains. Every set flag is an
// independent exclusion; a node is kept only if no flag excludes it.
type TreeFilterFlags uint32

const (
	// TreeNoDevices omits block and character devices.
	TreeNoDevices TreeFilterFlags = 0x01
	// TreeNoSockets omits sockets.
	TreeNoSockets TreeFilterFlags = 0x02
	// TreeNoFifo omits named pipes.
	TreeNoFifo TreeFilterFlags = 0x04
	// TreeNoSymlinks omits symbolic links.
	TreeNoSymlinks TreeFilterFlags = 0x08
	// TreeNoEmpty omits directories that end up without children.
	TreeNoEmpty TreeFilterFlags = 0x10
	// TreeNoRecurse stops after the immediate children of the start directory.
	TreeNoRecurse TreeFilterFlags = 0x20
	// TreeStoreParents adds the ancestors of a start path to the tree.
	TreeStoreParents TreeFilterFlags = 0x40
	// TreeFollowSymlinks resolves the start path through symbolic links.
	TreeFollowSymlinks TreeFilterFlags = 0x80
	// TreeUseExportTable checks every inode reference against the export table.
	TreeUseExportTable TreeFilterFlags = 0x100

	// TreeFilterFlagsKnown is the union of every defined flag.
	TreeFilterFlagsKnown TreeFilterFlags = 0x1FF
)

var treeFlagNames = []struct {
	flag TreeFilterFlags
	name string
}{
	{TreeNoDevices, "no-devices"},
	{TreeNoSockets, "no-sockets"},
	{TreeNoFifo, "no-fifo"},
	{TreeNoSymlinks, "no-symlinks"},
	{TreeNoEmpty, "no-empty"},
	{TreeNoRecurse, "no-recurse"},
	{TreeStoreParents, "store-parents"},
	{TreeFollowSymlinks, "follow-symlinks"},
	{TreeUseExportTable, "use-export-table"},
}

// Has reports whether every bit of flag is set.
func (f TreeFilterFlags) Has(flag TreeFilterFlags) bool { return f&flag == flag }

// With returns the union of f and flag.
func (f TreeFilterFlags) With(flag TreeFilterFlags) TreeFilterFlags { return f | flag }

// Validate rejects unknown bits.
func (f TreeFilterFlags) Validate() error {
	if unknown := f &^ TreeFilterFlagsKnown; unknown != 0 {
		return Errorf("validate tree filter flags", KindInvalidArgument, "unknown bits 0x%x", uint32(unknown))
	}
	return nil
}

// Excludes reports whether a node with the given inode type is filtered out.
// Directories are never excluded here; TreeNoEmpty is applied after their children are known.
func (f TreeFilterFlags) Excludes(t InodeType) bool {
	switch {
	case t.IsDevice():
		return f.Has(TreeNoDevices)
	case t.Basic() == InodeTypeSocket:
		return f.Has(TreeNoSockets)
	case t.Basic() == InodeTypeFifo:
		return f.Has(TreeNoFifo)
	case t.IsSymlink():
		return f.Has(TreeNoSymlinks)
	default:
		return false
	}
}

func (f TreeFilterFlags) String() string {
	var names []string
	for _, entry := range treeFlagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	if unknown := f &^ TreeFilterFlagsKnown; unknown != 0 {
		names = append(names, fmt.Sprintf("unknown(0x%x)", uint32(unknown)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseTreeFilterFlag returns the flag with the given name.
func ParseTreeFilterFlag(name string) (TreeFilterFlags, error) {
	for _, entry := range treeFlagNames {
		if entry.name == name {
			return entry.flag, nil
		}
	}
	return 0, Errorf("parse tree filter flag", KindInvalidArgument, "unknown flag %q", name)
}

// FileOpenFlags configure how an archive file is opened.
type FileOpenFlags uint32

const (
	// FileOpenReadOnly opens the archive without write access.
	FileOpenReadOnly FileOpenFlags = 0x1
	// FileOpenOverwrite truncates an existing file when opening for writing.
	FileOpenOverwrite FileOpenFlags = 0x2
	// FileOpenNoBuffer disables the read cache of the handle.
	FileOpenNoBuffer FileOpenFlags = 0x4

	// FileOpenFlagsKnown is the union of every defined flag.
	FileOpenFlagsKnown FileOpenFlags = 0x7
)

// Has reports whether every bit of flag is set.
func (f FileOpenFlags) Has(flag FileOpenFlags) bool { return f&flag == flag }

// With returns the union of f and flag.
func (f FileOpenFlags) With(flag FileOpenFlags) FileOpenFlags { return f | flag }

// Validate rejects unknown bits and contradictory combinations.
func (f FileOpenFlags) Validate() error {
	if unknown := f &^ FileOpenFlagsKnown; unknown != 0 {
		return Errorf("validate file open flags", KindInvalidArgument, "unknown bits 0x%x", uint32(unknown))
	}
	if f.Has(FileOpenReadOnly) && f.Has(FileOpenOverwrite) {
		return Errorf("validate file open flags", KindInvalidArgument, "read-only and overwrite are exclusive")
	}
	return nil
}
