package inodes

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const (
	// maxBlockEntries bounds the block list of one file
	maxBlockEntries = 1 << 26

	// MaxSymlinkTargetSize is the longest accepted symbolic link target
	MaxSymlinkTargetSize = 1 << 16
)

// ByteSource yields consecutive bytes of the inode table
type ByteSource interface {
	ReadBytes(n int) ([]byte, error)
}

// sliceSource reads from a byte slice and reports running out as truncation
type sliceSource struct {
	data []byte
	off  int
}

func (s *sliceSource) ReadBytes(n int) ([]byte, error) {
	if n < 0 || len(s.data)-s.off < n {
		return nil, types.WrapError("decode inode", types.KindCorrupted,
			&types.TruncatedError{Op: "decode inode", Want: s.off + n, Have: len(s.data)})
	}
	b := s.data[s.off : s.off+n]
	s.off += n
	return b, nil
}

// Decode decodes an inode from raw bytes starting with the inode header. It
// returns the inode and the number of bytes consumed.
func Decode(raw []byte, blockSize uint32) (Inode, int, error) {
	src := &sliceSource{data: raw}
	inode, err := DecodeFrom(src, blockSize)
	if err != nil {
		return nil, 0, err
	}
	return inode, src.off, nil
}

// DecodeFrom reads the header and then the body of one inode from src
func DecodeFrom(src ByteSource, blockSize uint32) (Inode, error) {
	raw, err := src.ReadBytes(types.InodeHeaderSize)
	if err != nil {
		return nil, err
	}
	header := decodeHeader(raw)
	return DecodeBody(header, src, blockSize)
}

func decodeHeader(raw []byte) types.InodeHeaderT {
	endian := binary.LittleEndian
	return types.InodeHeaderT{
		Type:             types.InodeType(endian.Uint16(raw[0:2])),
		Mode:             endian.Uint16(raw[2:4]),
		UIDIndex:         endian.Uint16(raw[4:6]),
		GIDIndex:         endian.Uint16(raw[6:8]),
		ModificationTime: endian.Uint32(raw[8:12]),
		InodeNumber:      endian.Uint32(raw[12:16]),
	}
}

// DecodeBody dispatches on the header's type tag and decodes the matching body.
// An unknown tag fails with UnknownInodeTypeError.
func DecodeBody(header types.InodeHeaderT, src ByteSource, blockSize uint32) (Inode, error) {
	base := InodeBase{
		Tag:              header.Type,
		Mode:             header.Mode,
		UIDIndex:         header.UIDIndex,
		GIDIndex:         header.GIDIndex,
		ModificationTime: header.ModificationTime,
		InodeNumber:      header.InodeNumber,
	}

	switch header.Type {
	case types.InodeTypeDirectory:
		return decodeDirectory(base, src)
	case types.InodeTypeExtDirectory:
		return decodeExtendedDirectory(base, src)
	case types.InodeTypeFile:
		return decodeFile(base, src, blockSize)
	case types.InodeTypeExtFile:
		return decodeExtendedFile(base, src, blockSize)
	case types.InodeTypeSymlink, types.InodeTypeExtSymlink:
		return decodeSymlink(base, src)
	case types.InodeTypeBlockDevice, types.InodeTypeCharDevice:
		return decodeDevice(base, src)
	case types.InodeTypeExtBlockDev, types.InodeTypeExtCharDev:
		return decodeExtendedDevice(base, src)
	case types.InodeTypeFifo, types.InodeTypeSocket:
		return decodeIpc(base, src)
	case types.InodeTypeExtFifo, types.InodeTypeExtSocket:
		return decodeExtendedIpc(base, src)
	default:
		return nil, &types.UnknownInodeTypeError{Tag: uint16(header.Type)}
	}
}

// finish returns inode unless decoding its fields failed
func finish(inode Inode, r *helpers.FieldReader) (Inode, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return inode, nil
}

func readBody(src ByteSource, size int, op string) (*helpers.FieldReader, error) {
	raw, err := src.ReadBytes(size)
	if err != nil {
		return nil, err
	}
	return helpers.NewFieldReader(raw, op), nil
}

func decodeDirectory(base InodeBase, src ByteSource) (Inode, error) {
	r, err := readBody(src, types.DirInodeSize, "decode directory inode")
	if err != nil {
		return nil, err
	}
	d := &DirectoryInode{InodeBase: base}
	d.Body = types.DirInodeT{
		StartBlock:  r.U32(),
		LinkCount:   r.U32(),
		FileSize:    r.U16(),
		Offset:      r.U16(),
		ParentInode: r.U32(),
	}
	return finish(d, r)
}

func decodeExtendedDirectory(base InodeBase, src ByteSource) (Inode, error) {
	const op = "decode extended directory inode"

	r, err := readBody(src, types.DirExtInodeSize, op)
	if err != nil {
		return nil, err
	}
	d := &ExtendedDirectoryInode{InodeBase: base}
	d.Body = types.DirExtInodeT{
		LinkCount:   r.U32(),
		FileSize:    r.U32(),
		StartBlock:  r.U32(),
		ParentInode: r.U32(),
		IndexCount:  r.U16(),
		Offset:      r.U16(),
		XattrIndex:  r.U32(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	count := int(d.Body.IndexCount)
	d.Index = make([]DirectoryIndex, 0, count)
	d.Extra = make([]uint32, 0, count)
	used := 0
	for i := 0; i < count; i++ {
		ir, err := readBody(src, types.DirIndexSize, op)
		if err != nil {
			return nil, err
		}
		entry := types.DirIndexT{Index: ir.U32(), Start: ir.U32(), NameSize: ir.U32()}
		if entry.NameSize >= types.MaxNameLength {
			return nil, types.Errorf(op, types.KindCorrupted, "index name of %d bytes", entry.NameSize+1)
		}
		rawName, err := src.ReadBytes(int(entry.NameSize) + 1)
		if err != nil {
			return nil, err
		}
		name, err := helpers.ValidateUTF8(rawName, op)
		if err != nil {
			return nil, err
		}
		d.Index = append(d.Index, DirectoryIndex{Index: entry.Index, Start: entry.Start, Name: name})
		d.Extra = append(d.Extra, entry.Index)
		used += types.DirIndexSize + len(rawName)
	}
	d.PayloadBytesAvailable = uint32(used)
	d.PayloadBytesUsed = uint32(used)
	return d, nil
}

func readBlockSizes(base *InodeBase, src ByteSource, fileSize uint64, blockSize uint32, hasFragment bool, op string) error {
	if blockSize == 0 {
		return types.Errorf(op, types.KindInvalidArgument, "block size is zero")
	}
	count := DataBlockCount(fileSize, blockSize, hasFragment)
	if count > maxBlockEntries {
		return types.Errorf(op, types.KindOverflow, "file of %d bytes has %d blocks", fileSize, count)
	}

	raw, err := src.ReadBytes(int(count) * 4)
	if err != nil {
		return err
	}
	base.Extra = make([]uint32, count)
	for i := range base.Extra {
		base.Extra[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	base.PayloadBytesAvailable = uint32(len(raw))
	base.PayloadBytesUsed = uint32(len(raw))
	return nil
}

func decodeFile(base InodeBase, src ByteSource, blockSize uint32) (Inode, error) {
	const op = "decode file inode"

	r, err := readBody(src, types.FileInodeSize, op)
	if err != nil {
		return nil, err
	}
	f := &FileInode{InodeBase: base}
	f.Body = types.FileInodeT{
		BlocksStart:    r.U32(),
		FragmentIndex:  r.U32(),
		FragmentOffset: r.U32(),
		FileSize:       r.U32(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := readBlockSizes(&f.InodeBase, src, f.FileSize(), blockSize, f.HasFragment(), op); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeExtendedFile(base InodeBase, src ByteSource, blockSize uint32) (Inode, error) {
	const op = "decode extended file inode"

	r, err := readBody(src, types.FileExtInodeSize, op)
	if err != nil {
		return nil, err
	}
	f := &ExtendedFileInode{InodeBase: base}
	f.Body = types.FileExtInodeT{
		BlocksStart:    r.U64(),
		FileSize:       r.U64(),
		Sparse:         r.U64(),
		LinkCount:      r.U32(),
		FragmentIndex:  r.U32(),
		FragmentOffset: r.U32(),
		XattrIndex:     r.U32(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := readBlockSizes(&f.InodeBase, src, f.FileSize(), blockSize, f.HasFragment(), op); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeSymlink(base InodeBase, src ByteSource) (Inode, error) {
	const op = "decode symlink inode"

	r, err := readBody(src, types.SymlinkInodeSize, op)
	if err != nil {
		return nil, err
	}
	s := SymlinkInode{InodeBase: base}
	s.LinkCount = r.U32()
	size := r.U32()
	if size > MaxSymlinkTargetSize {
		return nil, types.Errorf(op, types.KindCorrupted, "symlink target of %d bytes", size)
	}
	target, err := src.ReadBytes(int(size))
	if err != nil {
		return nil, err
	}
	s.TargetBytes = append([]byte(nil), target...)
	s.PayloadBytesAvailable = size
	s.PayloadBytesUsed = size

	if !base.Tag.IsExtended() {
		return &s, nil
	}
	xr, err := readBody(src, 4, op)
	if err != nil {
		return nil, err
	}
	return &ExtendedSymlinkInode{SymlinkInode: s, XattrIndex: xr.U32()}, nil
}

func decodeDevice(base InodeBase, src ByteSource) (Inode, error) {
	r, err := readBody(src, types.DevInodeSize, "decode device inode")
	if err != nil {
		return nil, err
	}
	d := &DeviceInode{InodeBase: base}
	d.Body = types.DevInodeT{LinkCount: r.U32(), Device: r.U32()}
	return finish(d, r)
}

func decodeExtendedDevice(base InodeBase, src ByteSource) (Inode, error) {
	r, err := readBody(src, types.DevInodeSize+4, "decode extended device inode")
	if err != nil {
		return nil, err
	}
	d := &ExtendedDeviceInode{DeviceInode: DeviceInode{InodeBase: base}}
	d.Body = types.DevInodeT{LinkCount: r.U32(), Device: r.U32()}
	d.XattrIndex = r.U32()
	return finish(d, r)
}

func decodeIpc(base InodeBase, src ByteSource) (Inode, error) {
	r, err := readBody(src, types.IpcInodeSize, "decode ipc inode")
	if err != nil {
		return nil, err
	}
	return finish(&IpcInode{InodeBase: base, LinkCount: r.U32()}, r)
}

func decodeExtendedIpc(base InodeBase, src ByteSource) (Inode, error) {
	r, err := readBody(src, types.IpcInodeSize+4, "decode extended ipc inode")
	if err != nil {
		return nil, err
	}
	i := &ExtendedIpcInode{IpcInode: IpcInode{InodeBase: base, LinkCount: r.U32()}}
	i.XattrIndex = r.U32()
	return finish(i, r)
}
