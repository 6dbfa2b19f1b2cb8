package inodes

import "github.com/deploymenttheory/go-squashfs/internal/types"

// BlockIterator walks the data blocks of a file. Block start offsets are not
// stored; each is the previous start plus the previous on-disk size.
type BlockIterator struct {
	sizes  []uint32
	index  int
	offset uint64
	cur    types.Block
}

func newBlockIterator(start uint64, sizes []uint32) *BlockIterator {
	return &BlockIterator{sizes: sizes, index: -1, offset: start}
}

// Next advances to the next block and reports whether one exists
func (it *BlockIterator) Next() bool {
	if it.index+1 >= len(it.sizes) {
		it.index = len(it.sizes)
		return false
	}
	it.index++
	raw := it.sizes[it.index]
	it.cur = types.NewBlock(it.offset, raw)
	it.offset += uint64(types.DecodeSize(raw).OnDiskSize)
	return true
}

// Value returns the current block
func (it *BlockIterator) Value() types.Block {
	return it.cur
}

// Index returns the position of the current block in the file
func (it *BlockIterator) Index() int {
	return it.index
}

// Len returns the number of blocks not yet visited
func (it *BlockIterator) Len() int {
	return max(len(it.sizes)-it.index-1, 0)
}

// CollectBlocks returns every block of a file
func CollectBlocks(f File) []types.Block {
	blocks := make([]types.Block, 0, f.BlockCount())
	for it := f.Blocks(); it.Next(); {
		blocks = append(blocks, it.Value())
	}
	return blocks
}

// DataBlockCount returns the number of block size entries stored for a file.
// A trailing partial block is stored as a block unless it lives in a fragment.
func DataBlockCount(fileSize uint64, blockSize uint32, hasFragment bool) uint64 {
	count := fileSize / uint64(blockSize)
	if fileSize%uint64(blockSize) != 0 && !hasFragment {
		count++
	}
	return count
}
