package compression

import (
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

type lz4Codec struct {
	hc bool
}

func newLz4Codec(cfg Config) (codec, error) {
	hc := cfg.Flags.Has(types.CompFlagLz4HC)
	if opts := cfg.Options; opts != nil && opts.Lz4 != nil {
		if opts.Lz4.Version != types.Lz4Version1 {
			return nil, fmt.Errorf("unsupported lz4 options version %d", opts.Lz4.Version)
		}
		hc = hc || opts.Lz4.Flags&uint32(types.CompFlagLz4HC) != 0
	}
	if extra := cfg.Flags.Codec() &^ types.CompFlagLz4HC; extra != 0 {
		return nil, fmt.Errorf("unknown lz4 flag bits 0x%x", uint16(extra))
	}
	return &lz4Codec{hc: hc}, nil
}

func (c *lz4Codec) compress(in []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(in)))

	var (
		written int
		err     error
	)
	if c.hc {
		written, err = lz4.CompressBlockHC(in, destination, lz4.Level9, nil, nil)
	} else {
		written, err = lz4.CompressBlock(in, destination, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// Incompressible input is reported as zero bytes written; the caller stores it raw.
	if written == 0 {
		return append([]byte(nil), in...), nil
	}
	return destination[:written], nil
}

func (c *lz4Codec) decompress(in []byte, limit int) ([]byte, error) {
	destination := make([]byte, limit)
	read, err := lz4.UncompressBlock(in, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return destination[:read], nil
}
