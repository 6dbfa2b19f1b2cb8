package compression

import (
	"bytes"
	"fmt"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

type xzCodec struct {
	dictCap int
}

func newXzCodec(cfg Config) (codec, error) {
	dictCap := int(cfg.BlockSize)
	if opts := cfg.Options; opts != nil && opts.Xz != nil {
		if err := validateXzDictionary(opts.Xz.DictionarySize, cfg.BlockSize); err != nil {
			return nil, err
		}
		dictCap = int(opts.Xz.DictionarySize)
	}
	if filters := cfg.Flags.Codec() &^ (types.CompFlagXzX86 | types.CompFlagXzPowerPC | types.CompFlagXzIA64 |
		types.CompFlagXzArm | types.CompFlagXzArmThumb | types.CompFlagXzSparc | types.CompFlagXzExtreme); filters != 0 {
		return nil, fmt.Errorf("unknown xz filter bits 0x%x", uint16(filters))
	}
	return &xzCodec{dictCap: dictCap}, nil
}

// validateXzDictionary accepts a power of two or the sum of two adjacent powers of two
func validateXzDictionary(size, blockSize uint32) error {
	if size < 8192 || size > blockSize {
		return fmt.Errorf("xz dictionary size %d out of range", size)
	}
	n := size
	for n&1 == 0 {
		n >>= 1
	}
	if n != 1 && n != 3 {
		return fmt.Errorf("xz dictionary size %d is not 2^n or 2^n+2^(n+1)", size)
	}
	return nil
}

func (c *xzCodec) compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	config := xz.WriterConfig{
		DictCap: c.dictCap,
	}
	xw, err := config.NewWriter(&b)
	if err != nil {
		return nil, fmt.Errorf("error creating xz compressor: %w", err)
	}
	if _, err := xw.Write(in); err != nil {
		return nil, err
	}
	if err := xw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *xzCodec) decompress(in []byte, limit int) ([]byte, error) {
	xr, err := xz.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating xz decompressor: %w", err)
	}
	return readLimited(xr, limit)
}

// lzmaCodec handles the legacy lzma "alone" stream format
type lzmaCodec struct {
	dictCap int
}

func newLzmaCodec(cfg Config) (codec, error) {
	if opts := cfg.Options; opts != nil && opts.Algorithm == types.CompressionLzma {
		// lzma archives never carry an options block
		return nil, fmt.Errorf("lzma does not accept compressor options")
	}
	return &lzmaCodec{dictCap: int(cfg.BlockSize)}, nil
}

func (c *lzmaCodec) compress(in []byte) ([]byte, error) {
	var b bytes.Buffer
	config := lzma.WriterConfig{
		DictCap:      c.dictCap,
		Size:         int64(len(in)),
		SizeInHeader: true,
	}
	lw, err := config.NewWriter(&b)
	if err != nil {
		return nil, fmt.Errorf("error creating lzma compressor: %w", err)
	}
	if _, err := lw.Write(in); err != nil {
		return nil, err
	}
	if err := lw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *lzmaCodec) decompress(in []byte, limit int) ([]byte, error) {
	lr, err := lzma.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("error creating lzma decompressor: %w", err)
	}
	return readLimited(lr, limit)
}
