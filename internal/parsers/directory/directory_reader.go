// Package directory reads directory listings from the directory table and
// assembles them into path lookups and directory trees.
package directory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Entry is one decoded directory entry
type Entry struct {
	Name        string
	Type        types.InodeType
	InodeNumber uint32
	Ref         types.InodeRef
}

// IsDot reports whether the entry is a synthesized "." or ".." entry
func (e Entry) IsDot() bool {
	return e.Name == "." || e.Name == ".."
}

// Reader reads directory listings. It remembers the inode reference of every
// directory it has seen so that ".." entries can be resolved.
type Reader struct {
	meta    interfaces.MetadataBlockReader
	inodes  *inodes.Reader
	sb      *types.SuperBlock
	flags   types.DirReaderFlags
	exports interfaces.ExportTableReader

	rootRef    types.InodeRef
	rootNumber uint32

	mu     sync.Mutex
	dcache map[uint32]types.InodeRef
}

// NewReader creates a directory reader over the inode and directory tables
// described by the super block. The root inode is read up front.
func NewReader(meta interfaces.MetadataBlockReader, sb *types.SuperBlock, flags types.DirReaderFlags) (*Reader, error) {
	if sb == nil {
		return nil, types.Errorf("create directory reader", types.KindSequenceViolation, "super block not read")
	}
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	inodeReader, err := inodes.NewReader(meta, sb)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		meta:    meta,
		inodes:  inodeReader,
		sb:      sb,
		flags:   flags,
		rootRef: types.InodeRef(sb.RootInodeRef),
		dcache:  make(map[uint32]types.InodeRef),
	}

	root, err := r.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to read root inode: %w", err)
	}
	r.rootNumber = root.Base().InodeNumber
	r.remember(r.rootNumber, r.rootRef)

	return r, nil
}

// UseExportTable attaches the export table consulted by TreeUseExportTable
func (r *Reader) UseExportTable(exports interfaces.ExportTableReader) {
	r.exports = exports
}

// Root returns the root directory inode
func (r *Reader) Root() (inodes.Directory, error) {
	inode, err := r.inodes.ReadInode(r.rootRef)
	if err != nil {
		return nil, err
	}
	dir := inodes.AsDirectory(inode)
	if dir == nil {
		return nil, types.Errorf("read root inode", types.KindNotDirectory, "root inode is a %s", inode.Type())
	}
	return dir, nil
}

// RootRef returns the inode reference of the root directory
func (r *Reader) RootRef() types.InodeRef {
	return r.rootRef
}

// ReadInode decodes the inode at ref
func (r *Reader) ReadInode(ref types.InodeRef) (inodes.Inode, error) {
	return r.inodes.ReadInode(ref)
}

// InodeReader returns the inode reader shared by this directory reader
func (r *Reader) InodeReader() *inodes.Reader {
	return r.inodes
}

func (r *Reader) remember(number uint32, ref types.InodeRef) {
	r.mu.Lock()
	r.dcache[number] = ref
	r.mu.Unlock()
}

func (r *Reader) recall(number uint32) (types.InodeRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.dcache[number]
	return ref, ok
}

// ReadDirectory returns the entries of a directory in on-disk order. With
// DirReaderDotEntries the listing starts with "." and "..".
func (r *Reader) ReadDirectory(dir inodes.Directory) ([]Entry, error) {
	var entries []Entry

	if r.flags.Has(types.DirReaderDotEntries) {
		dots, err := r.dotEntries(dir)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dots...)
	}

	l := newListing(r.meta, r.sb.DirectoryTableStart, dir)
	for {
		entry, ok, err := l.next()
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %d: %w", dir.Base().InodeNumber, err)
		}
		if !ok {
			break
		}
		if entry.Type == types.InodeTypeDirectory {
			r.remember(entry.InodeNumber, entry.Ref)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Reader) dotEntries(dir inodes.Directory) ([]Entry, error) {
	const op = "read directory dot entries"

	number := dir.Base().InodeNumber
	self, ok := r.recall(number)
	if !ok {
		return nil, types.Errorf(op, types.KindNoEntry, "directory %d was not reached through the reader", number)
	}

	parentNumber := dir.ParentInode()
	parent := self
	if number != r.rootNumber {
		if parent, ok = r.recall(parentNumber); !ok {
			return nil, types.Errorf(op, types.KindNoEntry, "parent %d of directory %d not seen", parentNumber, number)
		}
	} else {
		parentNumber = number
	}

	return []Entry{
		{Name: ".", Type: types.InodeTypeDirectory, InodeNumber: number, Ref: self},
		{Name: "..", Type: types.InodeTypeDirectory, InodeNumber: parentNumber, Ref: parent},
	}, nil
}

type listingState int

const (
	stateIdle listingState = iota
	stateReadingHeader
	stateReadingEntries
	stateDone
)

// listing walks the headers and entries of one directory listing
type listing struct {
	cursor    *metadata.Cursor
	remaining uint32
	state     listingState
	header    types.DirHeaderT
	left      int
}

func newListing(meta interfaces.MetadataBlockReader, tableStart uint64, dir inodes.Directory) *listing {
	return &listing{
		cursor:    metadata.NewCursor(meta, tableStart, uint64(dir.StartBlock()), dir.Offset()),
		remaining: dir.ListingSize(),
	}
}

func (l *listing) take(n int, what string) ([]byte, error) {
	if uint32(n) > l.remaining {
		return nil, types.Errorf("read directory listing", types.KindCorrupted,
			"%s of %d bytes overruns listing with %d bytes left", what, n, l.remaining)
	}
	data, err := l.cursor.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	l.remaining -= uint32(n)
	return data, nil
}

func (l *listing) next() (Entry, bool, error) {
	for {
		switch l.state {
		case stateIdle:
			if l.remaining == 0 {
				l.state = stateDone
			} else {
				l.state = stateReadingHeader
			}

		case stateReadingHeader:
			raw, err := l.take(types.DirHeaderSize, "header")
			if err != nil {
				return Entry{}, false, err
			}
			fr := helpers.NewFieldReader(raw, "read directory header")
			l.header = types.DirHeaderT{Count: fr.U32(), StartBlock: fr.U32(), InodeNumber: fr.U32()}
			if l.header.Count >= types.DirMaxEntriesPerHeader {
				return Entry{}, false, types.Errorf("read directory header", types.KindCorrupted,
					"header announces %d entries", l.header.Count+1)
			}
			l.left = int(l.header.Count) + 1
			l.state = stateReadingEntries

		case stateReadingEntries:
			if l.left == 0 {
				if l.remaining == 0 {
					l.state = stateDone
				} else {
					l.state = stateReadingHeader
				}
				continue
			}
			entry, err := l.readEntry()
			if err != nil {
				return Entry{}, false, err
			}
			l.left--
			return entry, true, nil

		case stateDone:
			return Entry{}, false, nil
		}
	}
}

func (l *listing) readEntry() (Entry, error) {
	const op = "read directory entry"

	raw, err := l.take(types.DirEntrySize, "entry")
	if err != nil {
		return Entry{}, err
	}
	fr := helpers.NewFieldReader(raw, op)
	de := types.DirEntryT{
		Offset:      fr.U16(),
		InodeOffset: int16(fr.U16()),
		Type:        types.InodeType(fr.U16()),
		NameSize:    fr.U16(),
	}
	if de.NameSize >= types.MaxNameLength {
		return Entry{}, types.Errorf(op, types.KindCorrupted, "name of %d bytes", int(de.NameSize)+1)
	}
	if !de.Type.Valid() || de.Type.IsExtended() {
		return Entry{}, types.Errorf(op, types.KindCorrupted, "entry type %s", de.Type)
	}

	rawName, err := l.take(int(de.NameSize)+1, "name")
	if err != nil {
		return Entry{}, err
	}
	name, err := helpers.ValidateUTF8(rawName, op)
	if err != nil {
		return Entry{}, err
	}
	if !saneName(name) {
		return Entry{}, types.Errorf(op, types.KindCorrupted, "entry name %q", name)
	}

	number := int64(l.header.InodeNumber) + int64(de.InodeOffset)
	if number < 1 || number > int64(^uint32(0)) {
		return Entry{}, types.Errorf(op, types.KindCorrupted, "inode number %d for %q", number, name)
	}

	return Entry{
		Name:        name,
		Type:        de.Type,
		InodeNumber: uint32(number),
		Ref:         types.NewInodeRef(uint64(l.header.StartBlock), de.Offset),
	}, nil
}

func saneName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
