package compression

import (
	"bytes"
	"fmt"

	lzo "github.com/rasky/go-lzo"
)

const lzoAlgorithm1X999 = 4

type lzoCodec struct {
	best bool
}

func newLzoCodec(cfg Config) (codec, error) {
	c := &lzoCodec{best: true}
	if opts := cfg.Options; opts != nil && opts.Lzo != nil {
		if opts.Lzo.Algorithm > lzoAlgorithm1X999 {
			return nil, fmt.Errorf("unknown lzo algorithm %d", opts.Lzo.Algorithm)
		}
		if opts.Lzo.Algorithm != lzoAlgorithm1X999 && opts.Lzo.CompressionLevel != 0 {
			return nil, fmt.Errorf("lzo compression level only applies to lzo1x_999")
		}
		c.best = opts.Lzo.Algorithm == lzoAlgorithm1X999
	}
	return c, nil
}

func (c *lzoCodec) compress(in []byte) ([]byte, error) {
	if c.best {
		return lzo.Compress1X999(in), nil
	}
	return lzo.Compress1X(in), nil
}

func (c *lzoCodec) decompress(in []byte, limit int) ([]byte, error) {
	out, err := lzo.Decompress1X(bytes.NewReader(in), len(in), limit)
	if err != nil {
		return nil, fmt.Errorf("lzo decompress: %w", err)
	}
	return out, nil
}
