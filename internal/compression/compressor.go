// Package compression adapts the codec libraries to the block compressor used
// by archive readers and writers.
package compression

import (
	"fmt"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Config selects and configures a compressor
type Config struct {
	Algorithm types.CompressionAlgorithm
	BlockSize uint32
	Flags     types.CompressorFlags

	// Level is the codec compression level. Zero selects the codec default.
	Level int

	// Options is the decoded options block of an archive, if any. It overrides Level.
	Options *types.CompressorOptions
}

// ConfigFromSuperBlock builds a Config for the compressor recorded in a super block
func ConfigFromSuperBlock(sb *types.SuperBlock, flags types.CompressorFlags) Config {
	return Config{
		Algorithm: sb.Compression(),
		BlockSize: sb.BlockSize,
		Flags:     flags,
	}
}

// codec is the per-algorithm implementation behind an Adapter.
// limit is the largest acceptable uncompressed size.
type codec interface {
	compress(in []byte) ([]byte, error)
	decompress(in []byte, limit int) ([]byte, error)
}

// Adapter implements interfaces.Compressor on top of a codec library
type Adapter struct {
	cfg   Config
	codec codec
}

var _ interfaces.Compressor = (*Adapter)(nil)

// New creates the compressor for cfg. An unknown algorithm fails with KindUnsupported.
func New(cfg Config) (*Adapter, error) {
	const op = "create compressor"

	if cfg.BlockSize == 0 {
		cfg.BlockSize = types.DefaultBlockSize
	}
	if cfg.BlockSize < types.MinBlockSize || cfg.BlockSize > types.MaxBlockSize {
		return nil, types.Errorf(op, types.KindInvalidArgument, "block size %d out of range", cfg.BlockSize)
	}
	if unknown := cfg.Flags &^ types.CompFlagsKnown; unknown != 0 {
		return nil, types.Errorf(op, types.KindInvalidArgument, "unknown compressor flags 0x%04x", uint16(unknown))
	}
	if cfg.Options != nil && cfg.Options.Algorithm != cfg.Algorithm {
		return nil, types.Errorf(op, types.KindInvalidArgument, "options for %s given to %s compressor", cfg.Options.Algorithm, cfg.Algorithm)
	}

	var (
		c   codec
		err error
	)
	switch cfg.Algorithm {
	case types.CompressionGZip:
		c, err = newGzipCodec(cfg)
	case types.CompressionLzma:
		c, err = newLzmaCodec(cfg)
	case types.CompressionLzo:
		c, err = newLzoCodec(cfg)
	case types.CompressionXz:
		c, err = newXzCodec(cfg)
	case types.CompressionLz4:
		c, err = newLz4Codec(cfg)
	case types.CompressionZstd:
		c, err = newZstdCodec(cfg)
	default:
		return nil, types.Errorf(op, types.KindUnsupported, "compression algorithm %s", cfg.Algorithm)
	}
	if err != nil {
		return nil, types.WrapError(op, types.KindCompressor, err)
	}
	if c == nil {
		return nil, &types.ResourceError{Op: op}
	}

	return &Adapter{cfg: cfg, codec: c}, nil
}

// Decompress returns the uncompressed form of a block
func (a *Adapter) Decompress(data []byte) ([]byte, error) {
	const op = "decompress block"

	limit := a.limit()
	out, err := a.codec.decompress(data, limit)
	if err != nil {
		return nil, types.WrapError(op, types.KindCompressor, fmt.Errorf("%s: %w", a.cfg.Algorithm, err))
	}
	if len(out) > limit {
		return nil, types.Errorf(op, types.KindCorrupted, "%d bytes exceed block size %d", len(out), limit)
	}
	return out, nil
}

// Compress returns the compressed form of a block. A decompress-only
// compressor fails with KindUnsupported.
func (a *Adapter) Compress(data []byte) ([]byte, error) {
	const op = "compress block"

	if a.cfg.Flags.Has(types.CompFlagUncompress) {
		return nil, types.Errorf(op, types.KindUnsupported, "compressor is decompress-only")
	}
	if len(data) > a.limit() {
		return nil, types.Errorf(op, types.KindInvalidArgument, "%d bytes exceed block size %d", len(data), a.limit())
	}
	out, err := a.codec.compress(data)
	if err != nil {
		return nil, types.WrapError(op, types.KindCompressor, fmt.Errorf("%s: %w", a.cfg.Algorithm, err))
	}
	return out, nil
}

// limit is the largest block the adapter handles. Metadata blocks are 8 KiB
// even in archives with 4 KiB data blocks.
func (a *Adapter) limit() int {
	return max(int(a.cfg.BlockSize), types.MetadataBlockSize)
}

// Algorithm returns the algorithm implemented by the adapter
func (a *Adapter) Algorithm() types.CompressionAlgorithm {
	return a.cfg.Algorithm
}

// BlockSize returns the largest block the adapter produces
func (a *Adapter) BlockSize() uint32 {
	return a.cfg.BlockSize
}

// Flags returns the flags the adapter was created with
func (a *Adapter) Flags() types.CompressorFlags {
	return a.cfg.Flags
}
