package interfaces

import (
	"io"
)

// FileReader provides positioned reads over the bytes of an archive
type FileReader interface {
	io.ReaderAt

	// Size returns the number of bytes addressable through ReadAt
	Size() int64
}

// FileWriter provides positioned writes used when an archive is mutated
type FileWriter interface {
	io.WriterAt

	// Truncate changes the size of the underlying file
	Truncate(size int64) error

	// IsReadOnly reports whether writes are rejected
	IsReadOnly() bool
}

// FileHandle is an exclusively owned handle over the bytes of an archive.
// Close releases the handle; no method may be called after Close.
type FileHandle interface {
	FileReader
	FileWriter
	io.Closer
}

// BlockCacheStats contains metadata block cache statistics
type BlockCacheStats struct {
	// Total number of cache hits
	Hits uint64

	// Total number of cache misses
	Misses uint64

	// Current number of blocks in cache
	BlocksInCache int

	// Maximum number of blocks the cache can hold, 0 when unbounded
	MaxBlocks int
}
