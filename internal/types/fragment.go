package types

// Fragment Table
// Tails of files smaller than a block are packed together into fragment blocks.
// The fragment table describes where each fragment block is stored.

const (
	// FragmentEntrySize is the on-disk size of one fragment table entry.
	FragmentEntrySize = 16

	// NoFragment is the fragment index of a file that has no tail fragment.
	NoFragment uint32 = 0xFFFFFFFF
)

// Fragment is one fragment table entry.
type Fragment struct {
	// StartOffset is the absolute byte offset of the fragment block.
	StartOffset uint64
	// RawSize is the raw size field. See DecodeSize.
	RawSize uint32
	// Pad is unused and must be zero. It is kept to round-trip the entry.
	Pad uint32
}

// Compressed reports whether the fragment block must be decompressed.
func (f Fragment) Compressed() bool {
	return DecodeSize(f.RawSize).Compressed
}

// OnDiskSize returns the number of bytes the fragment block occupies.
func (f Fragment) OnDiskSize() uint32 {
	return DecodeSize(f.RawSize).OnDiskSize
}

// IsSparse reports whether the fragment block stores nothing.
func (f Fragment) IsSparse() bool {
	return DecodeSize(f.RawSize).IsSparse
}

// Export Table

const (
	// ExportEntrySize is the on-disk size of one export table entry, an inode reference.
	ExportEntrySize = 8

	// IDEntrySize is the on-disk size of one id table entry.
	IDEntrySize = 4

	// MaxIDCount is the largest number of entries the id table can hold.
	MaxIDCount = 1 << 16
)
