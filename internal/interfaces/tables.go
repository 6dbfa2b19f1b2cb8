package interfaces

import "github.com/deploymenttheory/go-squashfs/internal/types"

// IDTableReader resolves the uid and gid indices stored in inodes
type IDTableReader interface {
	// Lookup returns the id stored at index
	Lookup(index uint16) (uint32, error)

	// Size returns the number of ids in the table
	Size() int
}

// FragmentTableReader resolves fragment indices stored in file inodes
type FragmentTableReader interface {
	// Lookup returns the fragment stored at index
	Lookup(index uint32) (types.Fragment, error)

	// Size returns the number of fragments in the table
	Size() int
}

// ExportTableReader resolves inode numbers to inode references
type ExportTableReader interface {
	// Lookup returns the inode reference of an inode number
	Lookup(inodeNumber uint32) (types.InodeRef, error)

	// Size returns the number of inodes in the table
	Size() int
}

// MetadataBlockReader reads decoded metadata blocks
type MetadataBlockReader interface {
	// ReadBlock returns the uncompressed contents of the metadata block at the
	// absolute offset and the offset of the block that follows it
	ReadBlock(offset uint64) ([]byte, uint64, error)
}
