package metadata

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-squashfs/internal/interfaces"
	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// EncodeBlock encodes up to 8 KiB of data as a metadata block. The block is
// stored compressed only when that makes it smaller.
func EncodeBlock(comp interfaces.Compressor, data []byte, uncompressed bool) ([]byte, error) {
	const op = "encode metadata block"

	if len(data) == 0 || len(data) > types.MetadataBlockSize {
		return nil, types.Errorf(op, types.KindInvalidArgument, "block of %d bytes", len(data))
	}

	payload := data
	header := uint16(len(data)) | headerUncompressed
	if !uncompressed && comp != nil {
		compressed, err := comp.Compress(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			payload = compressed
			header = uint16(len(compressed))
		}
	}

	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(out, header)
	return append(out, payload...), nil
}

// Writer accumulates a metadata stream such as the inode or directory table
// and cuts it into blocks
type Writer struct {
	comp         interfaces.Compressor
	uncompressed bool

	pending []byte
	out     []byte
}

// NewWriter creates a metadata stream writer
func NewWriter(comp interfaces.Compressor, uncompressed bool) *Writer {
	return &Writer{comp: comp, uncompressed: uncompressed}
}

// Position returns the block offset relative to the stream start and the
// in-block offset the next byte will be written at
func (w *Writer) Position() (uint64, uint16) {
	return uint64(len(w.out)), uint16(len(w.pending))
}

// Write appends data to the stream
func (w *Writer) Write(data []byte) error {
	for len(data) > 0 {
		take := min(types.MetadataBlockSize-len(w.pending), len(data))
		w.pending = append(w.pending, data[:take]...)
		data = data[take:]
		if len(w.pending) == types.MetadataBlockSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	block, err := EncodeBlock(w.comp, w.pending, w.uncompressed)
	if err != nil {
		return err
	}
	w.out = append(w.out, block...)
	w.pending = w.pending[:0]
	return nil
}

// Bytes flushes the partial block and returns the encoded stream
func (w *Writer) Bytes() ([]byte, error) {
	if err := w.flush(); err != nil {
		return nil, err
	}
	return w.out, nil
}
