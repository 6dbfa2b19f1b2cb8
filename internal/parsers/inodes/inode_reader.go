package inodes

import (
	"fmt"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/parsers/metadata"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Reader resolves inode references against the inode table
type Reader struct {
	meta       interfaces.MetadataBlockReader
	tableStart uint64
	blockSize  uint32
}

// NewReader creates an inode reader for the inode table recorded in the super block
func NewReader(meta interfaces.MetadataBlockReader, sb *types.SuperBlock) (*Reader, error) {
	if sb == nil {
		return nil, types.Errorf("create inode reader", types.KindSequenceViolation, "super block not read")
	}
	return &Reader{
		meta:       meta,
		tableStart: sb.InodeTableStart,
		blockSize:  sb.BlockSize,
	}, nil
}

// ReadInode decodes the inode at ref
func (r *Reader) ReadInode(ref types.InodeRef) (Inode, error) {
	cursor := metadata.NewCursor(r.meta, r.tableStart, ref.Block(), ref.Offset())
	inode, err := DecodeFrom(cursor, r.blockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read inode %s: %w", ref, err)
	}
	return inode, nil
}

// BlockSize returns the data block size used to size file block lists
func (r *Reader) BlockSize() uint32 {
	return r.blockSize
}
