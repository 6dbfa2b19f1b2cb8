// Package testutil builds small archives in memory for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-squashfs/internal/compression"
	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/tables"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Node describes one object of an archive to build
type Node struct {
	Name     string
	Type     types.InodeType
	Perm     uint16
	UID      uint32
	GID      uint32
	Extended bool

	Children []*Node
	Data     []byte
	Target   string
	Device   uint32

	// Sparse marks data blocks made only of zeros to be stored as holes
	Sparse bool

	number uint32
	ref    types.InodeRef
}

// Dir creates a directory node
func Dir(name string, children ...*Node) *Node {
	return &Node{Name: name, Type: types.InodeTypeDirectory, Perm: 0o755, Children: children}
}

// File creates a regular file node
func File(name string, data []byte) *Node {
	return &Node{Name: name, Type: types.InodeTypeFile, Perm: 0o644, Data: data}
}

// Symlink creates a symbolic link node
func Symlink(name, target string) *Node {
	return &Node{Name: name, Type: types.InodeTypeSymlink, Perm: 0o777, Target: target}
}

// Device creates a block or character device node
func Device(name string, block bool, major, minor uint32) *Node {
	t := types.InodeTypeCharDevice
	if block {
		t = types.InodeTypeBlockDevice
	}
	return &Node{Name: name, Type: t, Perm: 0o600, Device: types.MakeDevice(major, minor)}
}

// Fifo creates a named pipe node
func Fifo(name string) *Node {
	return &Node{Name: name, Type: types.InodeTypeFifo, Perm: 0o644}
}

// Socket creates a socket node
func Socket(name string) *Node {
	return &Node{Name: name, Type: types.InodeTypeSocket, Perm: 0o755}
}

// Options control the layout of a built archive
type Options struct {
	// BlockSize defaults to 128 KiB
	BlockSize uint32

	// Compressor compresses data and metadata. Without one everything is stored raw.
	Compressor interfaces.Compressor

	// Fragments packs file tails into fragment blocks
	Fragments bool

	// Export writes an export table
	Export bool

	// CompressorOptions is written as an options block after the super block
	CompressorOptions *types.CompressorOptions

	ModificationTime uint32
}

// Image is a built archive
type Image struct {
	Data       []byte
	SuperBlock *types.SuperBlock
	Root       *Node
}

// Handle returns a read-only handle over the image bytes
func (img *Image) Handle() *device.MemoryHandle {
	return device.NewReadOnlyMemoryHandle(img.Data)
}

// Save writes the image to dir/name and returns its path
func (img *Image) Save(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

type builder struct {
	opts  Options
	file  *device.MemoryHandle
	pos   uint64
	ids   *tables.IDTable
	frags *tables.FragmentTable

	fragment []byte

	inodeTable *metadata.Writer
	dirTable   *metadata.Writer
	refs       []types.InodeRef
	count      uint32
}

type inodeFragment struct {
	index  uint32
	offset uint32
}

// Build lays out root and its descendants as an archive: super block, data
// and fragment blocks, inode table, directory table, fragment table, export
// table and id table. Inodes are numbered in post-order so the root comes last.
func Build(root *Node, opts Options) (*Image, error) {
	if opts.BlockSize == 0 {
		opts.BlockSize = types.DefaultBlockSize
	}
	algorithm := types.CompressionGZip
	if opts.Compressor != nil {
		algorithm = opts.Compressor.Algorithm()
	}

	sb, err := superblock.New(opts.BlockSize, algorithm, opts.ModificationTime)
	if err != nil {
		return nil, err
	}
	if opts.Compressor == nil {
		sb.Flags = sb.Flags.With(types.SuperFlagUncompressedInodes | types.SuperFlagUncompressedData |
			types.SuperFlagUncompressedFragments | types.SuperFlagUncompressedIDs)
	}
	if !opts.Fragments {
		sb.Flags = sb.Flags.With(types.SuperFlagNoFragments)
	}

	raw := opts.Compressor == nil
	b := &builder{
		opts:       opts,
		file:       device.NewMemoryHandle(make([]byte, types.SuperBlockSize)),
		pos:        types.SuperBlockSize,
		ids:        tables.NewIDTable(),
		frags:      tables.NewFragmentTable(),
		inodeTable: metadata.NewWriter(opts.Compressor, raw),
		dirTable:   metadata.NewWriter(opts.Compressor, raw),
	}

	if opts.CompressorOptions != nil {
		block, err := compression.OptionsBlock(opts.CompressorOptions)
		if err != nil {
			return nil, err
		}
		sb.Flags = sb.Flags.With(types.SuperFlagCompressorOptions)
		if err := b.write(block); err != nil {
			return nil, err
		}
	}

	b.number(root)
	b.refs = make([]types.InodeRef, b.count)

	if _, err := b.writeNode(root, b.count+1); err != nil {
		return nil, err
	}
	if err := b.flushFragment(); err != nil {
		return nil, err
	}

	sb.InodeCount = b.count
	sb.RootInodeRef = uint64(root.ref)

	inodeBytes, err := b.inodeTable.Bytes()
	if err != nil {
		return nil, err
	}
	sb.InodeTableStart = b.pos
	if err := b.write(inodeBytes); err != nil {
		return nil, err
	}

	dirBytes, err := b.dirTable.Bytes()
	if err != nil {
		return nil, err
	}
	sb.DirectoryTableStart = b.pos
	if err := b.write(dirBytes); err != nil {
		return nil, err
	}

	if b.pos, err = b.frags.Write(b.file, sb, opts.Compressor, b.pos); err != nil {
		return nil, err
	}
	if opts.Export {
		if b.pos, err = tables.NewExportTable(b.refs).Write(b.file, sb, opts.Compressor, b.pos); err != nil {
			return nil, err
		}
	}
	if b.pos, err = b.ids.Write(b.file, sb, opts.Compressor, b.pos); err != nil {
		return nil, err
	}

	sb.BytesUsed = b.pos
	if err := superblock.Write(sb, b.file); err != nil {
		return nil, err
	}

	// archives are padded to the device block size
	if pad := b.pos % types.DeviceBlockSize; pad != 0 {
		if err := b.file.Truncate(int64(b.pos + types.DeviceBlockSize - pad)); err != nil {
			return nil, err
		}
	}

	return &Image{Data: b.file.Bytes(), SuperBlock: sb, Root: root}, nil
}

func (b *builder) number(n *Node) {
	for _, child := range n.Children {
		b.number(child)
	}
	b.count++
	n.number = b.count
}

func (b *builder) write(data []byte) error {
	if err := helpers.WriteExact(b.file, b.pos, data, "build image"); err != nil {
		return err
	}
	b.pos += uint64(len(data))
	return nil
}

func (b *builder) base(n *Node, tag types.InodeType) (inodes.InodeBase, error) {
	uid, err := b.ids.Add(n.UID)
	if err != nil {
		return inodes.InodeBase{}, err
	}
	gid, err := b.ids.Add(n.GID)
	if err != nil {
		return inodes.InodeBase{}, err
	}
	return inodes.InodeBase{
		Tag:              tag,
		Mode:             types.ModeTypeFor(tag) | n.Perm,
		UIDIndex:         uid,
		GIDIndex:         gid,
		ModificationTime: b.opts.ModificationTime,
		InodeNumber:      n.number,
	}, nil
}

// writeNode writes the inodes below n, the directory listing of n and finally
// the inode of n. It returns the reference of n's inode.
func (b *builder) writeNode(n *Node, parent uint32) (types.InodeRef, error) {
	tag := n.Type
	if n.Extended {
		tag = tag.Extended()
	}
	base, err := b.base(n, tag)
	if err != nil {
		return 0, err
	}

	var inode inodes.Inode
	switch n.Type {
	case types.InodeTypeDirectory:
		inode, err = b.directory(n, base, parent)
	case types.InodeTypeFile:
		inode, err = b.regularFile(n, base)
	case types.InodeTypeSymlink:
		s := inodes.SymlinkInode{InodeBase: base, LinkCount: 1, TargetBytes: []byte(n.Target)}
		if n.Extended {
			inode = &inodes.ExtendedSymlinkInode{SymlinkInode: s, XattrIndex: types.NoXattr}
		} else {
			inode = &s
		}
	case types.InodeTypeBlockDevice, types.InodeTypeCharDevice:
		d := inodes.DeviceInode{InodeBase: base, Body: types.DevInodeT{LinkCount: 1, Device: n.Device}}
		if n.Extended {
			inode = &inodes.ExtendedDeviceInode{DeviceInode: d, XattrIndex: types.NoXattr}
		} else {
			inode = &d
		}
	case types.InodeTypeFifo, types.InodeTypeSocket:
		i := inodes.IpcInode{InodeBase: base, LinkCount: 1}
		if n.Extended {
			inode = &inodes.ExtendedIpcInode{IpcInode: i, XattrIndex: types.NoXattr}
		} else {
			inode = &i
		}
	default:
		return 0, fmt.Errorf("cannot build node %q of type %s", n.Name, n.Type)
	}
	if err != nil {
		return 0, err
	}

	encoded, err := inodes.Encode(inode)
	if err != nil {
		return 0, err
	}
	block, offset := b.inodeTable.Position()
	n.ref = types.NewInodeRef(block, offset)
	b.refs[n.number-1] = n.ref
	if err := b.inodeTable.Write(encoded); err != nil {
		return 0, err
	}
	return n.ref, nil
}

func (b *builder) directory(n *Node, base inodes.InodeBase, parent uint32) (inodes.Inode, error) {
	subdirs := 0
	for _, child := range n.Children {
		if _, err := b.writeNode(child, n.number); err != nil {
			return nil, err
		}
		if child.Type == types.InodeTypeDirectory {
			subdirs++
		}
	}

	listing := encodeListing(n.Children)
	block, offset := b.dirTable.Position()
	if err := b.dirTable.Write(listing); err != nil {
		return nil, err
	}

	size := uint32(len(listing)) + types.DirListingOverhead
	links := uint32(2 + subdirs)
	if n.Extended || size > 0xFFFF || block > 0xFFFFFFFF {
		base.Tag = types.InodeTypeExtDirectory
		return &inodes.ExtendedDirectoryInode{
			InodeBase: base,
			Body: types.DirExtInodeT{
				LinkCount:   links,
				FileSize:    size,
				StartBlock:  uint32(block),
				ParentInode: parent,
				Offset:      offset,
				XattrIndex:  types.NoXattr,
			},
		}, nil
	}
	return &inodes.DirectoryInode{
		InodeBase: base,
		Body: types.DirInodeT{
			StartBlock:  uint32(block),
			LinkCount:   links,
			FileSize:    uint16(size),
			Offset:      offset,
			ParentInode: parent,
		},
	}, nil
}

// encodeListing groups entries into runs sharing a header. A new run starts
// when the inode block changes, the inode number delta leaves the int16 range
// or the run is full.
func encodeListing(children []*Node) []byte {
	w := helpers.NewFieldWriter(0)
	for start := 0; start < len(children); {
		first := children[start]
		end := start + 1
		for end < len(children) && end-start < types.DirMaxEntriesPerHeader {
			c := children[end]
			delta := int64(c.number) - int64(first.number)
			if c.ref.Block() != first.ref.Block() || delta < -32768 || delta > 32767 {
				break
			}
			end++
		}

		w.U32(uint32(end - start - 1)).U32(uint32(first.ref.Block())).U32(first.number)
		for _, c := range children[start:end] {
			w.U16(c.ref.Offset()).U16(uint16(int16(int64(c.number) - int64(first.number))))
			w.U16(uint16(c.Type)).U16(uint16(len(c.Name) - 1)).Bytes([]byte(c.Name))
		}
		start = end
	}
	return w.Data()
}

func (b *builder) regularFile(n *Node, base inodes.InodeBase) (inodes.Inode, error) {
	size := uint64(len(n.Data))
	bs := uint64(b.opts.BlockSize)
	tail := size % bs
	useFragment := b.opts.Fragments && tail != 0

	blocksStart := b.pos
	var sizes []uint32
	var sparse uint64
	for off := uint64(0); off < size; off += bs {
		chunk := n.Data[off:min(off+bs, size)]
		if useFragment && uint64(len(chunk)) < bs {
			break
		}
		if n.Sparse && allZero(chunk) {
			sizes = append(sizes, 0)
			sparse += uint64(len(chunk))
			continue
		}
		stored, compressed, err := b.compress(chunk)
		if err != nil {
			return nil, err
		}
		if err := b.write(stored); err != nil {
			return nil, err
		}
		sizes = append(sizes, types.EncodeSize(uint32(len(stored)), compressed))
	}

	frag := &inodeFragment{index: types.NoFragment}
	if useFragment {
		if err := b.addFragment(n.Data[size-tail:], frag); err != nil {
			return nil, err
		}
	}

	base.Extra = sizes
	base.PayloadBytesAvailable = uint32(len(sizes) * 4)
	base.PayloadBytesUsed = base.PayloadBytesAvailable

	if err := b.flushFragmentIfFull(); err != nil {
		return nil, err
	}

	if n.Extended || size > 0xFFFFFFFF || blocksStart > 0xFFFFFFFF || sparse > 0 {
		base.Tag = types.InodeTypeExtFile
		return &inodes.ExtendedFileInode{
			InodeBase: base,
			Body: types.FileExtInodeT{
				BlocksStart:    blocksStart,
				FileSize:       size,
				Sparse:         sparse,
				LinkCount:      1,
				FragmentIndex:  frag.index,
				FragmentOffset: frag.offset,
				XattrIndex:     types.NoXattr,
			},
		}, nil
	}
	return &inodes.FileInode{
		InodeBase: base,
		Body: types.FileInodeT{
			BlocksStart:    uint32(blocksStart),
			FragmentIndex:  frag.index,
			FragmentOffset: frag.offset,
			FileSize:       uint32(size),
		},
	}, nil
}

func (b *builder) compress(chunk []byte) ([]byte, bool, error) {
	if b.opts.Compressor == nil {
		return chunk, false, nil
	}
	out, err := b.opts.Compressor.Compress(chunk)
	if err != nil {
		return nil, false, err
	}
	if len(out) >= len(chunk) {
		return chunk, false, nil
	}
	return out, true, nil
}

// addFragment appends a tail to the open fragment block. The fragment index
// is the index the open block will get when it is flushed.
func (b *builder) addFragment(tail []byte, frag *inodeFragment) error {
	if len(b.fragment)+len(tail) > int(b.opts.BlockSize) {
		if err := b.flushFragment(); err != nil {
			return err
		}
	}
	frag.index = uint32(b.frags.Size())
	frag.offset = uint32(len(b.fragment))
	b.fragment = append(b.fragment, tail...)
	return nil
}

func (b *builder) flushFragmentIfFull() error {
	if len(b.fragment) == int(b.opts.BlockSize) {
		return b.flushFragment()
	}
	return nil
}

func (b *builder) flushFragment() error {
	if len(b.fragment) == 0 {
		return nil
	}
	stored, compressed, err := b.compress(b.fragment)
	if err != nil {
		return err
	}
	start := b.pos
	if err := b.write(stored); err != nil {
		return err
	}
	if _, err := b.frags.Append(types.Fragment{StartOffset: start, RawSize: types.EncodeSize(uint32(len(stored)), compressed)}); err != nil {
		return err
	}
	b.fragment = b.fragment[:0]
	return nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
