package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const zstdDefaultLevel = 15

// zstd.Encoder and zstd.Decoder are safe for concurrent use, so one pair
// serves every block of an archive.
type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(cfg Config) (codec, error) {
	level := zstdDefaultLevel
	if cfg.Level != 0 {
		level = cfg.Level
	}
	if opts := cfg.Options; opts != nil && opts.Zstd != nil {
		level = int(opts.Zstd.CompressionLevel)
	}
	if level < int(types.ZstdMinLevel) || level > int(types.ZstdMaxLevel) {
		return nil, fmt.Errorf("zstd level %d out of range", level)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(max(cfg.BlockSize, types.MetadataBlockSize))*2))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder initialization failed: %w", err)
	}
	c := &zstdCodec{decoder: decoder}
	if cfg.Flags.Has(types.CompFlagUncompress) {
		return c, nil
	}

	c.encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithWindowSize(zstdWindow(max(cfg.BlockSize, types.MetadataBlockSize))),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder initialization failed: %w", err)
	}
	return c, nil
}

// zstdWindow returns the smallest valid window covering a block
func zstdWindow(blockSize uint32) int {
	window := zstd.MinWindowSize
	for window < int(blockSize) {
		window <<= 1
	}
	return window
}

func (c *zstdCodec) compress(in []byte) ([]byte, error) {
	if c.encoder == nil {
		return nil, fmt.Errorf("zstd encoder not initialized")
	}
	return c.encoder.EncodeAll(in, nil), nil
}

func (c *zstdCodec) decompress(in []byte, limit int) ([]byte, error) {
	out, err := c.decoder.DecodeAll(in, make([]byte, 0, limit))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
