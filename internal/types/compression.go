package types

import "fmt"

// Compression
// Data blocks, fragments and metadata blocks are individually compressed with the
// algorithm recorded in the super block.

// CompressionAlgorithm identifies the compressor used by an archive.
type CompressionAlgorithm uint16

const (
	// CompressionGZip is zlib-wrapped DEFLATE.
	CompressionGZip CompressionAlgorithm = 1

	// CompressionLzma is the legacy LZMA "alone" format.
	CompressionLzma CompressionAlgorithm = 2

	// CompressionLzo is LZO1X.
	CompressionLzo CompressionAlgorithm = 3

	// CompressionXz is the XZ container format.
	CompressionXz CompressionAlgorithm = 4

	// CompressionLz4 is LZ4 in block format.
	CompressionLz4 CompressionAlgorithm = 5

	// CompressionZstd is Zstandard.
	CompressionZstd CompressionAlgorithm = 6
)

// String returns the conventional name of the algorithm.
func (c CompressionAlgorithm) String() string {
	switch c {
	case CompressionGZip:
		return "gzip"
	case CompressionLzma:
		return "lzma"
	case CompressionLzo:
		return "lzo"
	case CompressionXz:
		return "xz"
	case CompressionLz4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

// Valid reports whether c is one of the defined algorithms.
func (c CompressionAlgorithm) Valid() bool {
	return c >= CompressionGZip && c <= CompressionZstd
}

// ParseCompressionAlgorithm parses an algorithm from its name.
func ParseCompressionAlgorithm(name string) (CompressionAlgorithm, error) {
	for c := CompressionGZip; c <= CompressionZstd; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression algorithm: %q", name)
}

// CompressorFlags configures a compressor. The low byte holds codec specific
// options, the high bit selects a decompress-only compressor.
type CompressorFlags uint16

const (
	// CompFlagLz4HC selects the LZ4 high compression mode.
	CompFlagLz4HC CompressorFlags = 0x0001

	// CompFlagXzX86 enables the x86 BCJ filter.
	CompFlagXzX86 CompressorFlags = 0x0001
	// CompFlagXzPowerPC enables the PowerPC BCJ filter.
	CompFlagXzPowerPC CompressorFlags = 0x0002
	// CompFlagXzIA64 enables the IA64 BCJ filter.
	CompFlagXzIA64 CompressorFlags = 0x0004
	// CompFlagXzArm enables the ARM BCJ filter.
	CompFlagXzArm CompressorFlags = 0x0008
	// CompFlagXzArmThumb enables the ARM Thumb BCJ filter.
	CompFlagXzArmThumb CompressorFlags = 0x0010
	// CompFlagXzSparc enables the SPARC BCJ filter.
	CompFlagXzSparc CompressorFlags = 0x0020
	// CompFlagXzExtreme enables the extreme preset.
	CompFlagXzExtreme CompressorFlags = 0x0100

	// CompFlagGzipDefault selects the default deflate strategy.
	CompFlagGzipDefault CompressorFlags = 0x0001
	// CompFlagGzipFiltered selects the filtered strategy.
	CompFlagGzipFiltered CompressorFlags = 0x0002
	// CompFlagGzipHuffman selects Huffman only coding.
	CompFlagGzipHuffman CompressorFlags = 0x0004
	// CompFlagGzipRLE selects run length encoding.
	CompFlagGzipRLE CompressorFlags = 0x0008
	// CompFlagGzipFixed selects fixed Huffman codes.
	CompFlagGzipFixed CompressorFlags = 0x0010

	// CompFlagUncompress builds a compressor that can only decompress.
	CompFlagUncompress CompressorFlags = 0x8000

	// CompFlagsKnown is the union of every defined bit.
	CompFlagsKnown CompressorFlags = 0x813F
)

// Has reports whether every bit of flag is set.
func (f CompressorFlags) Has(flag CompressorFlags) bool {
	return f&flag == flag
}

// With returns the union of f and flag.
func (f CompressorFlags) With(flag CompressorFlags) CompressorFlags {
	return f | flag
}

// Codec returns the codec specific option bits.
func (f CompressorFlags) Codec() CompressorFlags {
	return f &^ CompFlagUncompress
}

// Compressor Options
// When SuperFlagCompressorOptions is set, a metadata block directly after the
// super block holds codec specific options.

// GzipOptionsT are the on-disk gzip compressor options.
type GzipOptionsT struct {
	// The compression level, 1 through 9.
	CompressionLevel uint32
	// The base two logarithm of the deflate window, 8 through 15.
	WindowSize uint16
	// The strategies tried by the compressor. See CompFlagGzip*.
	Strategies uint16
}

// XzOptionsT are the on-disk xz compressor options.
type XzOptionsT struct {
	// The dictionary size. A power of two, or the sum of two adjacent powers of two.
	DictionarySize uint32
	// The executable filters tried by the compressor. See CompFlagXz*.
	Filters uint32
}

// Lz4OptionsT are the on-disk lz4 compressor options.
type Lz4OptionsT struct {
	// The lz4 stream version. Always 1.
	Version uint32
	// The lz4 flags. See CompFlagLz4HC.
	Flags uint32
}

// ZstdOptionsT are the on-disk zstd compressor options.
type ZstdOptionsT struct {
	// The compression level, 1 through 22.
	CompressionLevel uint32
}

// LzoOptionsT are the on-disk lzo compressor options.
type LzoOptionsT struct {
	// The lzo variant. 0 through 4 map to lzo1x_1, lzo1x_1_11, lzo1x_1_12, lzo1x_1_15, lzo1x_999.
	Algorithm uint32
	// The compression level for lzo1x_999.
	CompressionLevel uint32
}

// LzmaOptionsT marks that the legacy lzma compressor has no options.
type LzmaOptionsT struct{}

// CompressorOptions holds the decoded options block. Only the field matching
// Algorithm is set.
type CompressorOptions struct {
	Algorithm CompressionAlgorithm
	Gzip      *GzipOptionsT
	Xz        *XzOptionsT
	Lz4       *Lz4OptionsT
	Zstd      *ZstdOptionsT
	Lzo       *LzoOptionsT
}

const (
	// Lz4Version1 is the only lz4 options version.
	Lz4Version1 uint32 = 1

	// ZstdMinLevel is the smallest zstd compression level.
	ZstdMinLevel uint32 = 1

	// ZstdMaxLevel is the largest zstd compression level.
	ZstdMaxLevel uint32 = 22
)
