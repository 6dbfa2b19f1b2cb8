package compression

import (
	"github.com/deploymenttheory/go-squashfs/internal/helpers"
	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// optionsStored marks an options block header whose payload is not compressed
const optionsStored uint16 = 0x8000

// optionsSize returns the encoded size of the options block of an algorithm
func optionsSize(alg types.CompressionAlgorithm) int {
	switch alg {
	case types.CompressionGZip, types.CompressionXz, types.CompressionLz4, types.CompressionLzo:
		return 8
	case types.CompressionZstd:
		return 4
	default:
		return 0
	}
}

// DecodeOptions decodes the payload of a compressor options metadata block
func DecodeOptions(alg types.CompressionAlgorithm, data []byte) (*types.CompressorOptions, error) {
	const op = "decode compressor options"

	size := optionsSize(alg)
	if size == 0 {
		return nil, types.Errorf(op, types.KindUnsupported, "%s has no compressor options", alg)
	}
	if len(data) != size {
		return nil, types.Errorf(op, types.KindCorrupted, "%s options are %d bytes, expected %d", alg, len(data), size)
	}

	r := helpers.NewFieldReader(data, op)
	opts := &types.CompressorOptions{Algorithm: alg}
	switch alg {
	case types.CompressionGZip:
		opts.Gzip = &types.GzipOptionsT{
			CompressionLevel: r.U32(),
			WindowSize:       r.U16(),
			Strategies:       r.U16(),
		}
		if opts.Gzip.CompressionLevel < 1 || opts.Gzip.CompressionLevel > 9 ||
			opts.Gzip.WindowSize < 8 || opts.Gzip.WindowSize > 15 {
			return nil, types.Errorf(op, types.KindCorrupted, "gzip level %d window %d out of range",
				opts.Gzip.CompressionLevel, opts.Gzip.WindowSize)
		}
	case types.CompressionXz:
		opts.Xz = &types.XzOptionsT{DictionarySize: r.U32(), Filters: r.U32()}
	case types.CompressionLz4:
		opts.Lz4 = &types.Lz4OptionsT{Version: r.U32(), Flags: r.U32()}
	case types.CompressionZstd:
		opts.Zstd = &types.ZstdOptionsT{CompressionLevel: r.U32()}
	case types.CompressionLzo:
		opts.Lzo = &types.LzoOptionsT{Algorithm: r.U32(), CompressionLevel: r.U32()}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return opts, nil
}

// EncodeOptions encodes the payload of a compressor options metadata block
func EncodeOptions(opts *types.CompressorOptions) ([]byte, error) {
	const op = "encode compressor options"

	w := helpers.NewFieldWriter(optionsSize(opts.Algorithm))
	switch {
	case opts.Gzip != nil:
		w.U32(opts.Gzip.CompressionLevel).U16(opts.Gzip.WindowSize).U16(opts.Gzip.Strategies)
	case opts.Xz != nil:
		w.U32(opts.Xz.DictionarySize).U32(opts.Xz.Filters)
	case opts.Lz4 != nil:
		w.U32(opts.Lz4.Version).U32(opts.Lz4.Flags)
	case opts.Zstd != nil:
		w.U32(opts.Zstd.CompressionLevel)
	case opts.Lzo != nil:
		w.U32(opts.Lzo.Algorithm).U32(opts.Lzo.CompressionLevel)
	default:
		return nil, types.Errorf(op, types.KindInvalidArgument, "no options set for %s", opts.Algorithm)
	}
	return w.Data(), nil
}

// ReadOptions reads the options block stored directly after the super block.
// It returns nil options when the super block does not announce one.
func ReadOptions(file interfaces.FileReader, sb *types.SuperBlock) (*types.CompressorOptions, error) {
	const op = "read compressor options"

	if !sb.Flags.Has(types.SuperFlagCompressorOptions) {
		return nil, nil
	}

	raw, err := helpers.ReadExact(file, types.SuperBlockSize, 2, op)
	if err != nil {
		return nil, err
	}
	header := helpers.NewFieldReader(raw, op).U16()
	if header&optionsStored == 0 {
		return nil, types.Errorf(op, types.KindUnsupported, "compressed options block")
	}

	size := int(header &^ optionsStored)
	payload, err := helpers.ReadExact(file, types.SuperBlockSize+2, size, op)
	if err != nil {
		return nil, err
	}
	return DecodeOptions(sb.Compression(), payload)
}

// OptionsBlock encodes opts as the uncompressed metadata block written after
// the super block
func OptionsBlock(opts *types.CompressorOptions) ([]byte, error) {
	payload, err := EncodeOptions(opts)
	if err != nil {
		return nil, err
	}
	return helpers.NewFieldWriter(2+len(payload)).
		U16(uint16(len(payload)) | optionsStored).
		Bytes(payload).
		Data(), nil
}
