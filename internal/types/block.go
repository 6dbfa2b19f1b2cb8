package types

// Data Blocks and Fragments
// The size of every data block and fragment block is stored as a 32-bit field.
// Bit 24 is set when the block is stored uncompressed; bits 0 through 23 hold the
// on-disk size. A size of zero marks a sparse block that reads as zeros.

const (
	// BlockUncompressedBit is set in a size field when the block is stored raw.
	BlockUncompressedBit uint32 = 1 << 24

	// BlockSizeMask extracts the on-disk size from a size field.
	BlockSizeMask uint32 = BlockUncompressedBit - 1
)

// SizeInfo is the decoded form of a block or fragment size field.
type SizeInfo struct {
	// Compressed is true when the stored bytes must be decompressed.
	Compressed bool
	// OnDiskSize is the number of bytes the block occupies in the archive.
	OnDiskSize uint32
	// IsSparse is true when nothing is stored and the block reads as zeros.
	IsSparse bool
}

// DecodeSize decodes a raw size field. Blocks and fragments share this decoding.
func DecodeSize(raw uint32) SizeInfo {
	size := raw & BlockSizeMask
	return SizeInfo{
		Compressed: raw&BlockUncompressedBit == 0,
		OnDiskSize: size,
		IsSparse:   size == 0,
	}
}

// EncodeSize builds a raw size field. The size must fit in 24 bits.
func EncodeSize(size uint32, compressed bool) uint32 {
	raw := size & BlockSizeMask
	if !compressed {
		raw |= BlockUncompressedBit
	}
	return raw
}

// Block locates one data block of a regular file.
type Block struct {
	// StartOffset is the absolute byte offset of the block in the archive.
	StartOffset uint64
	// RawSize is the raw size field. See DecodeSize.
	RawSize uint32
}

// NewBlock creates a Block from its start offset and raw size field.
func NewBlock(startOffset uint64, rawSize uint32) Block {
	return Block{StartOffset: startOffset, RawSize: rawSize}
}

// Compressed reports whether the block must be decompressed.
func (b Block) Compressed() bool {
	return DecodeSize(b.RawSize).Compressed
}

// OnDiskSize returns the number of bytes the block occupies in the archive.
func (b Block) OnDiskSize() uint32 {
	return DecodeSize(b.RawSize).OnDiskSize
}

// IsSparse reports whether the block is a hole that reads as zeros.
func (b Block) IsSparse() bool {
	return DecodeSize(b.RawSize).IsSparse
}
