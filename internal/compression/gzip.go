package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

const (
	gzipDefaultLevel  = 9
	gzipDefaultWindow = 15
)

type gzipCodec struct {
	level int
}

func newGzipCodec(cfg Config) (codec, error) {
	level := gzipDefaultLevel
	if cfg.Level != 0 {
		level = cfg.Level
	}
	if opts := cfg.Options; opts != nil && opts.Gzip != nil {
		level = int(opts.Gzip.CompressionLevel)
	}
	if level < zlib.BestSpeed || level > zlib.BestCompression {
		return nil, fmt.Errorf("gzip level %d out of range", level)
	}
	if strategies := cfg.Flags.Codec() &^ (types.CompFlagGzipDefault | types.CompFlagGzipFiltered |
		types.CompFlagGzipHuffman | types.CompFlagGzipRLE | types.CompFlagGzipFixed); strategies != 0 {
		return nil, fmt.Errorf("unknown gzip strategy bits 0x%x", uint16(strategies))
	}
	return &gzipCodec{level: level}, nil
}

func (c *gzipCodec) compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	zw, err := zlib.NewWriterLevel(&b, c.level)
	if err != nil {
		return nil, fmt.Errorf("error creating zlib compressor: %w", err)
	}
	if _, err := zw.Write(in); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *gzipCodec) decompress(in []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating zlib decompressor: %w", err)
	}
	defer zr.Close()
	return readLimited(zr, limit)
}

// readLimited reads a decompressed stream, failing once it passes limit bytes
func readLimited(r io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("error decompressing: %w", err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("decompressed data exceeds %d bytes", limit)
	}
	return out, nil
}
