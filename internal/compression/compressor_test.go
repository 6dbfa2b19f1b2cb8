package compression

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

func TestAdapterRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("squashfs block payload "), 512)

	algorithms := []types.CompressionAlgorithm{
		types.CompressionGZip,
		types.CompressionLzma,
		types.CompressionLzo,
		types.CompressionXz,
		types.CompressionLz4,
		types.CompressionZstd,
	}

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			c, err := New(Config{Algorithm: alg, BlockSize: types.DefaultBlockSize})
			require.NoError(t, err)
			assert.Equal(t, alg, c.Algorithm())
			assert.Equal(t, types.DefaultBlockSize, c.BlockSize())

			compressed, err := c.Compress(payload)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(payload))

			out, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestAdapterLz4HighCompression(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1024)

	c, err := New(Config{Algorithm: types.CompressionLz4, Flags: types.CompFlagLz4HC})
	require.NoError(t, err)

	compressed, err := c.Compress(payload)
	require.NoError(t, err)
	out, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		kind types.ErrorKind
	}{
		{
			name: "unknown algorithm",
			cfg:  Config{Algorithm: 42},
			kind: types.KindUnsupported,
		},
		{
			name: "block size too large",
			cfg:  Config{Algorithm: types.CompressionGZip, BlockSize: 2 << 20},
			kind: types.KindInvalidArgument,
		},
		{
			name: "unknown flag bits",
			cfg:  Config{Algorithm: types.CompressionGZip, Flags: 0x4000},
			kind: types.KindInvalidArgument,
		},
		{
			name: "mismatched options",
			cfg: Config{
				Algorithm: types.CompressionGZip,
				Options:   &types.CompressorOptions{Algorithm: types.CompressionZstd, Zstd: &types.ZstdOptionsT{CompressionLevel: 3}},
			},
			kind: types.KindInvalidArgument,
		},
		{
			name: "zstd level out of range",
			cfg:  Config{Algorithm: types.CompressionZstd, Level: 30},
			kind: types.KindCompressor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			assert.Nil(t, c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "expected %v, got %v", tt.kind, err)
		})
	}
}

func TestDecompressOnly(t *testing.T) {
	c, err := New(Config{Algorithm: types.CompressionZstd, Flags: types.CompFlagUncompress})
	require.NoError(t, err)

	_, err = c.Compress([]byte("data"))
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestDecompressGarbage(t *testing.T) {
	c, err := New(Config{Algorithm: types.CompressionGZip})
	require.NoError(t, err)

	_, err = c.Decompress([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, types.ErrCompressor)
}

func TestDecompressExceedsBlockSize(t *testing.T) {
	writer, err := New(Config{Algorithm: types.CompressionZstd, BlockSize: types.DefaultBlockSize})
	require.NoError(t, err)
	compressed, err := writer.Compress(make([]byte, 64*1024))
	require.NoError(t, err)

	reader, err := New(Config{Algorithm: types.CompressionZstd, BlockSize: types.MetadataBlockSize, Flags: types.CompFlagUncompress})
	require.NoError(t, err)

	_, err = reader.Decompress(compressed)
	require.Error(t, err)
}

func TestOptionsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts *types.CompressorOptions
		size int
	}{
		{
			name: "gzip",
			opts: &types.CompressorOptions{Algorithm: types.CompressionGZip, Gzip: &types.GzipOptionsT{CompressionLevel: 9, WindowSize: 15, Strategies: 1}},
			size: 8,
		},
		{
			name: "xz",
			opts: &types.CompressorOptions{Algorithm: types.CompressionXz, Xz: &types.XzOptionsT{DictionarySize: 1 << 17, Filters: 0x1}},
			size: 8,
		},
		{
			name: "lz4",
			opts: &types.CompressorOptions{Algorithm: types.CompressionLz4, Lz4: &types.Lz4OptionsT{Version: 1, Flags: 1}},
			size: 8,
		},
		{
			name: "zstd",
			opts: &types.CompressorOptions{Algorithm: types.CompressionZstd, Zstd: &types.ZstdOptionsT{CompressionLevel: 19}},
			size: 4,
		},
		{
			name: "lzo",
			opts: &types.CompressorOptions{Algorithm: types.CompressionLzo, Lzo: &types.LzoOptionsT{Algorithm: 4, CompressionLevel: 8}},
			size: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeOptions(tt.opts)
			require.NoError(t, err)
			assert.Len(t, data, tt.size)

			decoded, err := DecodeOptions(tt.opts.Algorithm, data)
			require.NoError(t, err)
			assert.Equal(t, tt.opts, decoded)

			_, err = New(Config{Algorithm: tt.opts.Algorithm, Options: decoded})
			assert.NoError(t, err)
		})
	}
}

func TestDecodeOptionsErrors(t *testing.T) {
	_, err := DecodeOptions(types.CompressionLzma, []byte{})
	assert.ErrorIs(t, err, types.ErrUnsupported)

	_, err = DecodeOptions(types.CompressionZstd, []byte{1, 2})
	assert.ErrorIs(t, err, types.ErrCorrupted)

	_, err = DecodeOptions(types.CompressionGZip, []byte{0, 0, 0, 0, 15, 0, 1, 0})
	assert.ErrorIs(t, err, types.ErrCorrupted)
}

func TestValidateXzDictionary(t *testing.T) {
	assert.NoError(t, validateXzDictionary(1<<17, types.DefaultBlockSize))
	assert.NoError(t, validateXzDictionary(3<<15, types.DefaultBlockSize))
	assert.Error(t, validateXzDictionary(5<<14, types.DefaultBlockSize))
	assert.Error(t, validateXzDictionary(1<<18, types.DefaultBlockSize))
}

func TestReadOptions(t *testing.T) {
	opts := &types.CompressorOptions{Algorithm: types.CompressionXz, Xz: &types.XzOptionsT{DictionarySize: 1 << 17, Filters: 0x3}}
	block, err := OptionsBlock(opts)
	require.NoError(t, err)
	require.Len(t, block, 10)

	image := append(make([]byte, types.SuperBlockSize), block...)
	sb := &types.SuperBlock{CompressionID: uint16(types.CompressionXz), Flags: types.SuperFlagCompressorOptions}

	decoded, err := ReadOptions(device.NewReadOnlyMemoryHandle(image), sb)
	require.NoError(t, err)
	assert.Equal(t, opts, decoded)

	t.Run("flag clear", func(t *testing.T) {
		decoded, err := ReadOptions(device.NewReadOnlyMemoryHandle(image), &types.SuperBlock{CompressionID: uint16(types.CompressionXz)})
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("compressed block", func(t *testing.T) {
		packed := bytes.Clone(image)
		packed[types.SuperBlockSize+1] &^= 0x80
		_, err := ReadOptions(device.NewReadOnlyMemoryHandle(packed), sb)
		assert.ErrorIs(t, err, types.ErrUnsupported)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadOptions(device.NewReadOnlyMemoryHandle(image[:types.SuperBlockSize+4]), sb)
		assert.ErrorIs(t, err, types.ErrCorrupted)
	})
}
