package services

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/inodes"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/tables"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// FileContentReader reads the contents of one regular file. Data blocks are
// read and decompressed on demand; the most recent block is kept.
type FileContentReader struct {
	archive *Archive
	file    inodes.File
	blocks  []types.Block
	size    uint64
	offset  uint64

	// chunkMu guards the cached block; ReadAt may be called concurrently
	chunkMu   sync.Mutex
	chunk     int
	chunkData []byte
}

var (
	_ io.ReadSeeker = (*FileContentReader)(nil)
	_ io.ReaderAt   = (*FileContentReader)(nil)
	_ io.WriterTo   = (*FileContentReader)(nil)
)

// OpenFile opens the regular file at p for reading. Symbolic links are followed.
func (a *Archive) OpenFile(p string) (*FileContentReader, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	inode, _, err := a.dirs.Lookup(p, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	file := inodes.AsFile(inode)
	if file == nil {
		return nil, types.Errorf("open file", types.KindNotFile, "%s is a %s", p, inode.Type())
	}
	return a.NewFileContentReader(file)
}

// NewFileContentReader creates a reader over the data of a file inode
func (a *Archive) NewFileContentReader(file inodes.File) (*FileContentReader, error) {
	const op = "open file content"

	blocks := inodes.CollectBlocks(file)
	size := file.FileSize()
	bs := uint64(a.sb.BlockSize)
	covered := uint64(len(blocks)) * bs

	if file.HasFragment() {
		if covered > size || size-covered >= bs {
			return nil, types.Errorf(op, types.KindCorrupted, "%d blocks and a fragment cannot hold %d bytes", len(blocks), size)
		}
	} else if covered < size || (len(blocks) > 0 && covered-bs >= size) {
		return nil, types.Errorf(op, types.KindCorrupted, "%d blocks do not match a size of %d bytes", len(blocks), size)
	}

	return &FileContentReader{
		archive: a,
		file:    file,
		blocks:  blocks,
		size:    size,
		chunk:   -1,
	}, nil
}

// Size returns the file size in bytes
func (r *FileContentReader) Size() int64 {
	return int64(r.size)
}

// Read implements io.Reader
func (r *FileContentReader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	n, err := r.ReadAt(p, int64(r.offset))
	r.offset += uint64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt implements io.ReaderAt
func (r *FileContentReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}
	pos := uint64(off)
	n := 0
	bs := uint64(r.archive.sb.BlockSize)
	for n < len(p) && pos < r.size {
		index := int(pos / bs)
		data, err := r.load(index)
		if err != nil {
			return n, err
		}
		copied := copy(p[n:], data[pos-uint64(index)*bs:])
		n += copied
		pos += uint64(copied)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker
func (r *FileContentReader) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64

	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = int64(r.offset) + offset
	case io.SeekEnd:
		newOffset = int64(r.size) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if newOffset < 0 {
		return 0, fmt.Errorf("negative offset: %d", newOffset)
	}

	r.offset = uint64(newOffset)
	return newOffset, nil
}

// WriteTo writes the remaining contents of the file to w one block at a time
func (r *FileContentReader) WriteTo(w io.Writer) (int64, error) {
	var written int64
	bs := uint64(r.archive.sb.BlockSize)
	for r.offset < r.size {
		index := int(r.offset / bs)
		data, err := r.load(index)
		if err != nil {
			return written, err
		}
		n, err := w.Write(data[r.offset-uint64(index)*bs:])
		written += int64(n)
		r.offset += uint64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// load returns the uncompressed contents of logical block index. The block
// past the last data block is the tail fragment.
func (r *FileContentReader) load(index int) ([]byte, error) {
	r.chunkMu.Lock()
	if index == r.chunk {
		data := r.chunkData
		r.chunkMu.Unlock()
		return data, nil
	}
	r.chunkMu.Unlock()

	bs := uint64(r.archive.sb.BlockSize)
	expected := int(min(bs, r.size-uint64(index)*bs))

	var data []byte
	var err error
	if index < len(r.blocks) {
		data, err = r.archive.readDataBlock(r.blocks[index], expected)
	} else {
		data, err = r.archive.readTail(r.file, expected)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", index, err)
	}

	r.chunkMu.Lock()
	r.chunk = index
	r.chunkData = data
	r.chunkMu.Unlock()
	return data, nil
}

func (a *Archive) readDataBlock(b types.Block, expected int) ([]byte, error) {
	const op = "read data block"

	if b.IsSparse() {
		return make([]byte, expected), nil
	}
	if b.OnDiskSize() > a.sb.BlockSize {
		return nil, types.Errorf(op, types.KindCorrupted, "block at %d of %d bytes exceeds block size %d",
			b.StartOffset, b.OnDiskSize(), a.sb.BlockSize)
	}

	data, err := helpers.ReadExact(a.file, b.StartOffset, int(b.OnDiskSize()), op)
	if err != nil {
		return nil, err
	}
	if b.Compressed() {
		if data, err = a.comp.Decompress(data); err != nil {
			return nil, err
		}
	}
	if len(data) < expected {
		return nil, types.Errorf(op, types.KindCorrupted, "block at %d holds %d bytes, expected %d",
			b.StartOffset, len(data), expected)
	}
	return data[:expected], nil
}

func (a *Archive) readTail(file inodes.File, size int) ([]byte, error) {
	const op = "read tail fragment"

	block, err := a.fragmentBlock(file.FragmentIndex())
	if err != nil {
		return nil, err
	}
	start := uint64(file.FragmentOffset())
	if start+uint64(size) > uint64(len(block)) {
		return nil, types.Errorf(op, types.KindCorrupted, "tail of %d bytes at %d overruns fragment %d of %d bytes",
			size, start, file.FragmentIndex(), len(block))
	}
	return block[start : start+uint64(size)], nil
}

// fragmentBlock returns a decompressed fragment block, from the cache when
// another file already loaded it
func (a *Archive) fragmentBlock(index uint32) ([]byte, error) {
	if block, ok := a.fragCache.Get(index); ok {
		return block, nil
	}

	frag, err := a.fragments.Lookup(index)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fragment %d: %w", index, err)
	}
	block, err := tables.ReadFragmentBlock(a.file, a.comp, frag, a.sb.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment %d: %w", index, err)
	}
	a.log.WithFields(logrus.Fields{"fragment": index, "size": len(block)}).Debug("loaded fragment block")

	a.fragCache.Put(index, block)
	return block, nil
}

// ReadFile returns the whole contents of the regular file at p
func (a *Archive) ReadFile(p string) ([]byte, error) {
	r, err := a.OpenFile(p)
	if err != nil {
		return nil, err
	}
	data := make([]byte, r.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// ReadFileRange reads up to length bytes of the file at p starting at offset.
// Ranges past the end of the file are truncated.
func (a *Archive) ReadFileRange(p string, offset, length uint64) ([]byte, error) {
	r, err := a.OpenFile(p)
	if err != nil {
		return nil, err
	}
	if offset >= r.size {
		return []byte{}, nil
	}
	buf := make([]byte, min(length, r.size-offset))
	n, err := r.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return buf[:n], nil
}

// WriteFile streams the contents of the regular file at p to w
func (a *Archive) WriteFile(w io.Writer, p string) (int64, error) {
	r, err := a.OpenFile(p)
	if err != nil {
		return 0, err
	}
	return r.WriteTo(w)
}

// GetFileMappings describes where each logical range of the file at p is stored
func (a *Archive) GetFileMappings(p string) ([]DataMapping, error) {
	r, err := a.OpenFile(p)
	if err != nil {
		return nil, err
	}

	bs := uint64(a.sb.BlockSize)
	mappings := make([]DataMapping, 0, len(r.blocks)+1)
	for i, b := range r.blocks {
		logical := uint64(i) * bs
		mappings = append(mappings, DataMapping{
			LogicalOffset:  logical,
			LogicalSize:    min(bs, r.size-logical),
			PhysicalOffset: b.StartOffset,
			PhysicalSize:   b.OnDiskSize(),
			IsCompressed:   b.Compressed(),
			IsSparse:       b.IsSparse(),
		})
	}

	if r.file.HasFragment() {
		logical := uint64(len(r.blocks)) * bs
		frag, err := a.fragments.Lookup(r.file.FragmentIndex())
		if err != nil {
			return nil, fmt.Errorf("failed to look up fragment %d: %w", r.file.FragmentIndex(), err)
		}
		mappings = append(mappings, DataMapping{
			LogicalOffset:  logical,
			LogicalSize:    r.size - logical,
			PhysicalOffset: frag.StartOffset,
			PhysicalSize:   frag.OnDiskSize(),
			IsCompressed:   frag.Compressed(),
			IsFragment:     true,
			FragmentIndex:  r.file.FragmentIndex(),
			FragmentOffset: r.file.FragmentOffset(),
		})
	}
	return mappings, nil
}
