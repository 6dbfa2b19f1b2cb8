package interfaces

import "github.com/deploymenttheory/go-squashfs/internal/types"

// Compressor compresses and decompresses single blocks of an archive.
// Implementations must be safe for use from one goroutine at a time; the
// adapters in internal/compression are additionally safe for concurrent use.
type Compressor interface {
	// Decompress returns the uncompressed form of a block. The result never
	// exceeds the block size the compressor was configured with.
	Decompress(data []byte) ([]byte, error)

	// Compress returns the compressed form of a block. Callers store the
	// block raw when the result is not smaller than the input.
	Compress(data []byte) ([]byte, error)

	// Algorithm returns the algorithm implemented by the compressor
	Algorithm() types.CompressionAlgorithm

	// BlockSize returns the largest block the compressor will produce
	BlockSize() uint32
}
